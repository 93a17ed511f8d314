package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/infrastructure/http/v1/dto"
)

// UserHandler handles HTTP requests for the User catalog.
type UserHandler struct {
	*BaseHandler
	service *user.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *BaseHandler, service *user.Service) *UserHandler {
	return &UserHandler{BaseHandler: base, service: service}
}

// List handles GET /users.
func (h *UserHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromUser))
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := h.ParseID(c)
	if !ok {
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(u))
}

// Create handles POST /users. The number prefix follows the role.
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	u := req.ToUser()
	err := h.WithRetry(c.Request.Context(), func(ctx context.Context) error {
		return h.service.Register(ctx, u, req.Password)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromUser(u))
}
