package v1

import (
	"github.com/gin-gonic/gin"

	"invoicer/internal/core/numerator"
	"invoicer/internal/infrastructure/http/v1/middleware"
)

var (
	// staffRoles may work with items and invoices.
	staffRoles = []string{numerator.RoleAdmin, numerator.RoleSuperAdmin, numerator.RoleAccountant}

	// adminRoles may manage users.
	adminRoles = []string{numerator.RoleAdmin, numerator.RoleSuperAdmin}
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog,
// every route guarded by roles.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, roles ...string) {
	group.Use(middleware.RequireRole(roles...))
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}
