package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"invoicer/internal/core/id"
	"invoicer/internal/domain"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// CatalogService is what CatalogHandler needs from a catalog service.
type CatalogService[T domain.CatalogEntity] interface {
	Create(ctx context.Context, entity T) error
	GetByID(ctx context.Context, entityID id.ID) (T, error)
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, entityID id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error)
}

// CatalogHandler provides generic HTTP handlers for numbered catalog entities.
type CatalogHandler[T domain.CatalogEntity, CreateDTO any, UpdateDTO any, Resp any] struct {
	*BaseHandler
	service CatalogService[T]

	mapCreateDTO func(dto CreateDTO) T
	mapUpdateDTO func(dto UpdateDTO, existing T) T
	mapToDTO     func(entity T) Resp
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T domain.CatalogEntity, CreateDTO any, UpdateDTO any, Resp any] struct {
	Service      CatalogService[T]
	MapCreateDTO func(dto CreateDTO) T
	MapUpdateDTO func(dto UpdateDTO, existing T) T
	MapToDTO     func(entity T) Resp
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T domain.CatalogEntity, CreateDTO any, UpdateDTO any, Resp any](
	base *BaseHandler,
	cfg CatalogHandlerConfig[T, CreateDTO, UpdateDTO, Resp],
) *CatalogHandler[T, CreateDTO, UpdateDTO, Resp] {
	return &CatalogHandler[T, CreateDTO, UpdateDTO, Resp]{
		BaseHandler:  base,
		service:      cfg.Service,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
		mapToDTO:     cfg.MapToDTO,
	}
}

// List handles GET /{entity} - list with filtering and pagination.
func (h *CatalogHandler[T, CreateDTO, UpdateDTO, Resp]) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, h.mapToDTO))
}

// Get handles GET /{entity}/:id - get single entity.
func (h *CatalogHandler[T, CreateDTO, UpdateDTO, Resp]) Get(c *gin.Context) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	entity, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(entity))
}

// Create handles POST /{entity}. The whole create, number allocation
// included, is repeated under the retry policy.
func (h *CatalogHandler[T, CreateDTO, UpdateDTO, Resp]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	entity := h.mapCreateDTO(req)

	err := h.WithRetry(c.Request.Context(), func(ctx context.Context) error {
		return h.service.Create(ctx, entity)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, h.mapToDTO(entity))
}

// Update handles PUT /{entity}/:id - update existing entity.
func (h *CatalogHandler[T, CreateDTO, UpdateDTO, Resp]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated := h.mapUpdateDTO(req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(updated))
}

// Delete handles DELETE /{entity}/:id - soft delete entity.
func (h *CatalogHandler[T, CreateDTO, UpdateDTO, Resp]) Delete(c *gin.Context) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
