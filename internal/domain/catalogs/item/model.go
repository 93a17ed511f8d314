// Package item provides the Item catalog: goods and services that appear on invoice lines.
package item

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/entity"
	"invoicer/internal/core/types"
	"invoicer/internal/domain/vat"
)

// DefaultUnit is used when no unit is given.
const DefaultUnit = "pcs"

// Item represents a product or service.
type Item struct {
	entity.BaseEntity

	// ItemNumber is allocated on creation (ITM + YYMM + 6 digits) and never changes
	ItemNumber string `db:"item_number" json:"itemNumber" repo:"immutable"`

	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`

	// Unit of measure, e.g. "pcs", "h", "kg"
	Unit string `db:"unit" json:"unit"`

	// UnitPrice is the net price per unit in Currency
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Currency  string      `db:"currency" json:"currency"`

	VATCategory vat.Category `db:"vat_category" json:"vatCategory"`
}

// NewItem creates an item with defaults. The number is assigned by the service.
func NewItem(name string, unitPrice decimal.Decimal, currency string) *Item {
	return &Item{
		BaseEntity:  entity.NewBaseEntity(),
		Name:        name,
		Unit:        DefaultUnit,
		UnitPrice:   unitPrice,
		Currency:    strings.ToUpper(currency),
		VATCategory: vat.CategoryStandard,
	}
}

// GetNumber implements entity.Numbered.
func (i *Item) GetNumber() string { return i.ItemNumber }

// SetNumber implements entity.Numbered.
func (i *Item) SetNumber(number string) { i.ItemNumber = number }

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if len(i.Name) > 200 {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("maxLength", 200)
	}

	if i.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	if len(i.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").
			WithDetail("field", "currency")
	}

	if !i.VATCategory.IsValid() {
		return apperror.NewValidation("invalid VAT category").
			WithDetail("field", "vatCategory").
			WithDetail("value", i.VATCategory)
	}

	return nil
}

var (
	_ entity.Validatable = (*Item)(nil)
	_ entity.Numbered    = (*Item)(nil)
)
