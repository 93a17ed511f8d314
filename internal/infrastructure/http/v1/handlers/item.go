package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// ItemHandler handles HTTP requests for the Item catalog.
type ItemHandler struct {
	*CatalogHandler[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest, dto.ItemResponse]
	service *item.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHandler {
	config := CatalogHandlerConfig[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest, dto.ItemResponse]{
		Service: service,
		MapCreateDTO: func(req dto.CreateItemRequest) *item.Item {
			return req.ToItem()
		},
		MapUpdateDTO: func(req dto.UpdateItemRequest, existing *item.Item) *item.Item {
			req.Apply(existing)
			return existing
		},
		MapToDTO: dto.FromItem,
	}

	return &ItemHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// GetByNumber handles GET /items/by-number/:number.
func (h *ItemHandler) GetByNumber(c *gin.Context) {
	number := strings.ToUpper(strings.TrimSpace(c.Param("number")))

	it, err := h.service.FindByNumber(c.Request.Context(), number)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(it))
}
