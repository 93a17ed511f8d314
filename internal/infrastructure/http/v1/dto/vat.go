package dto

import "invoicer/internal/domain/vat"

// VATQuoteRequest asks for the tax breakdown of a prospective sale.
type VATQuoteRequest struct {
	Customer vat.Customer `json:"customer"`
	Lines    []vat.Line   `json:"lines" binding:"required,min=1"`
}
