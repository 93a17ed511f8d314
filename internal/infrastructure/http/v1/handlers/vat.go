package handlers

import (
	"github.com/gin-gonic/gin"

	"invoicer/internal/domain/vat"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// VATHandler exposes rates and tax quotes.
type VATHandler struct {
	*BaseHandler
	service *vat.Service
}

// NewVATHandler creates a new VAT handler.
func NewVATHandler(base *BaseHandler, service *vat.Service) *VATHandler {
	return &VATHandler{BaseHandler: base, service: service}
}

// Rates handles GET /vat/rates?country=. Without country the seller's rates are returned.
func (h *VATHandler) Rates(c *gin.Context) {
	country := c.Query("country")
	if country == "" {
		country = h.service.HomeCountry()
	}

	rates, err := h.service.Rates(country)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rates)
}

// Quote handles POST /vat/quote.
func (h *VATHandler) Quote(c *gin.Context) {
	var req dto.VATQuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), req.Customer, req.Lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, quote)
}
