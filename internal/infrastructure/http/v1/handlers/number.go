package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"invoicer/internal/core/apperror"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// NumberAllocator hands out committed numbers.
type NumberAllocator interface {
	AllocateInvoiceNumber(ctx context.Context) (string, error)
	AllocateItemNumber(ctx context.Context) (string, error)
	AllocateUserNumber(ctx context.Context, role string) (string, error)
}

// NumberHandler exposes the allocator. Every call consumes a number.
type NumberHandler struct {
	*BaseHandler
	numbers NumberAllocator
}

// NewNumberHandler creates a new number handler.
func NewNumberHandler(base *BaseHandler, numbers NumberAllocator) *NumberHandler {
	return &NumberHandler{BaseHandler: base, numbers: numbers}
}

// Invoice handles GET /numbers/invoice.
func (h *NumberHandler) Invoice(c *gin.Context) {
	number, ok := h.allocate(c, "invoice number", h.numbers.AllocateInvoiceNumber)
	if !ok {
		return
	}
	h.OK(c, dto.InvoiceNumberResponse{InvoiceNumber: number})
}

// Item handles GET /numbers/item.
func (h *NumberHandler) Item(c *gin.Context) {
	number, ok := h.allocate(c, "item number", h.numbers.AllocateItemNumber)
	if !ok {
		return
	}
	h.OK(c, dto.ItemNumberResponse{ItemNumber: number})
}

// User handles GET /numbers/user?role=.
func (h *NumberHandler) User(c *gin.Context) {
	var q dto.UserNumberQuery
	if !h.BindQuery(c, &q) {
		return
	}
	role := strings.ToUpper(strings.TrimSpace(q.Role))

	number, ok := h.allocate(c, "user number", func(ctx context.Context) (string, error) {
		return h.numbers.AllocateUserNumber(ctx, role)
	})
	if !ok {
		return
	}
	h.OK(c, dto.UserNumberResponse{UserNumber: number})
}

func (h *NumberHandler) allocate(c *gin.Context, what string, fn func(ctx context.Context) (string, error)) (string, bool) {
	var number string
	err := h.WithRetry(c.Request.Context(), func(ctx context.Context) error {
		n, err := fn(ctx)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		h.Error(c, err)
		return "", false
	}
	if number == "" {
		h.Error(c, apperror.NewNotFound(what, nil))
		return "", false
	}
	return number, true
}
