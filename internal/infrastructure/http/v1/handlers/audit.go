package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/infrastructure/storage/postgres"
)

// AuditHistory reads the audit trail of an entity.
type AuditHistory interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

var auditedEntities = map[string]bool{
	"invoice": true,
	"item":    true,
	"user":    true,
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	*BaseHandler
	history AuditHistory
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, history AuditHistory) *AuditHandler {
	return &AuditHandler{BaseHandler: base, history: history}
}

// History handles GET /audit/:entity/:id.
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entity")
	if !auditedEntities[entityType] {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("entity", entityType))
		return
	}

	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	entries, err := h.history.History(c.Request.Context(), entityType, entityID, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
