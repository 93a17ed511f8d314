package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"invoicer/internal/core/id"
	"invoicer/internal/domain/documents/invoice"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// List handles GET /invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	var q dto.InvoiceListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := invoice.ListFilter{ListFilter: h.ListFilter(c)}
	if err := q.Apply(&filter); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromInvoice))
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParseID(c)
	if !ok {
		return
	}

	inv, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// GetByNumber handles GET /invoices/by-number/:number.
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	inv, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// Create handles POST /invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	var created *invoice.Invoice
	err = h.WithRetry(c.Request.Context(), func(ctx context.Context) error {
		inv, err := h.service.Create(ctx, in)
		if err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromInvoice(created))
}

// Issue handles POST /invoices/:id/issue.
func (h *InvoiceHandler) Issue(c *gin.Context) {
	h.changeStatus(c, h.service.Issue)
}

// Pay handles POST /invoices/:id/pay.
func (h *InvoiceHandler) Pay(c *gin.Context) {
	h.changeStatus(c, h.service.MarkPaid)
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.changeStatus(c, h.service.Cancel)
}

func (h *InvoiceHandler) changeStatus(c *gin.Context, fn func(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error)) {
	invoiceID, ok := h.ParseID(c)
	if !ok {
		return
	}

	inv, err := fn(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}
