package dto

import (
	"github.com/shopspring/decimal"

	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/vat"
)

// ItemResponse is the API view of an item.
type ItemResponse struct {
	BaseResponse
	ItemNumber  string          `json:"itemNumber"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
	VATCategory vat.Category    `json:"vatCategory"`
}

// FromItem maps item.Item to ItemResponse.
func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		BaseResponse: FromBase(it.BaseEntity),
		ItemNumber:   it.ItemNumber,
		Name:         it.Name,
		Description:  it.Description,
		Unit:         it.Unit,
		UnitPrice:    it.UnitPrice,
		Currency:     it.Currency,
		VATCategory:  it.VATCategory,
	}
}

// CreateItemRequest creates an item. The number is always allocated by the server.
type CreateItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	VATCategory vat.Category    `json:"vatCategory"`
}

// ToItem builds a new item.
func (r CreateItemRequest) ToItem() *item.Item {
	it := item.NewItem(r.Name, r.UnitPrice, r.Currency)
	it.Description = r.Description
	if r.Unit != "" {
		it.Unit = r.Unit
	}
	if r.VATCategory != "" {
		it.VATCategory = r.VATCategory
	}
	return it
}

// UpdateItemRequest changes mutable item fields.
type UpdateItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Unit        *string          `json:"unit"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	Currency    *string          `json:"currency"`
	VATCategory *vat.Category    `json:"vatCategory"`
	Version     int              `json:"version" binding:"required,min=1"`
}

// Apply copies the set fields onto it.
func (r UpdateItemRequest) Apply(it *item.Item) {
	if r.Name != nil {
		it.Name = *r.Name
	}
	if r.Description != nil {
		it.Description = *r.Description
	}
	if r.Unit != nil {
		it.Unit = *r.Unit
	}
	if r.UnitPrice != nil {
		it.UnitPrice = *r.UnitPrice
	}
	if r.Currency != nil {
		it.Currency = *r.Currency
	}
	if r.VATCategory != nil {
		it.VATCategory = *r.VATCategory
	}
	it.Version = r.Version
}
