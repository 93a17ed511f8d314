// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"invoicer/internal/core/retry"
	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/domain/documents/invoice"
	"invoicer/internal/domain/vat"
	"invoicer/internal/infrastructure/http/v1/handlers"
	"invoicer/internal/infrastructure/http/v1/middleware"
	"invoicer/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// DB backs the readiness probe
	DB handlers.Database

	AppName string
	Version string

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Retry wraps every operation that allocates a number
	Retry retry.Policy

	Numbers  handlers.NumberAllocator
	Items    *item.Service
	Users    *user.Service
	Invoices *invoice.Service
	VAT      *vat.Service

	// Audit is optional; without it the audit route is not registered
	Audit handlers.AuditHistory
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.NoStore())
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.AppName, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	{
		base := handlers.NewBaseHandler(cfg.Retry)

		registerNumberRoutes(protected, base, cfg)
		registerCatalogRoutes(protected, base, cfg)
		registerInvoiceRoutes(protected, base, cfg)
		registerVATRoutes(protected, base, cfg)
		registerAuditRoutes(protected, base, cfg)
	}

	return router
}

// registerNumberRoutes exposes the sequential number allocator.
func registerNumberRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Numbers == nil {
		return
	}

	handler := handlers.NewNumberHandler(base, cfg.Numbers)
	numbers := rg.Group("/numbers")
	numbers.GET("/invoice", middleware.RequireRole(staffRoles...), handler.Invoice)
	numbers.GET("/item", middleware.RequireRole(staffRoles...), handler.Item)
	numbers.GET("/user", middleware.RequireRole(adminRoles...), handler.User)
}

// registerCatalogRoutes registers item and user endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Items != nil {
		handler := handlers.NewItemHandler(base, cfg.Items)
		items := rg.Group("/items")
		RegisterCatalogRoutes(items, handler, staffRoles...)
		items.GET("/by-number/:number", handler.GetByNumber)
	}

	if cfg.Users != nil {
		handler := handlers.NewUserHandler(base, cfg.Users)
		users := rg.Group("/users", middleware.RequireRole(adminRoles...))
		users.GET("", handler.List)
		users.POST("", handler.Create)
		users.GET("/:id", handler.Get)
	}
}

// registerInvoiceRoutes registers invoice endpoints.
func registerInvoiceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Invoices == nil {
		return
	}

	handler := handlers.NewInvoiceHandler(base, cfg.Invoices)
	invoices := rg.Group("/invoices", middleware.RequireRole(staffRoles...))
	invoices.GET("", handler.List)
	invoices.POST("", handler.Create)
	invoices.GET("/by-number/:number", handler.GetByNumber)
	invoices.GET("/:id", handler.Get)
	invoices.POST("/:id/issue", handler.Issue)
	invoices.POST("/:id/pay", handler.Pay)
	invoices.POST("/:id/cancel", handler.Cancel)
}

// registerVATRoutes registers tax endpoints, open to every authenticated user.
func registerVATRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.VAT == nil {
		return
	}

	handler := handlers.NewVATHandler(base, cfg.VAT)
	vatGroup := rg.Group("/vat")
	vatGroup.GET("/rates", handler.Rates)
	vatGroup.POST("/quote", handler.Quote)
}

// registerAuditRoutes registers the audit trail endpoint.
func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Audit == nil {
		return
	}

	handler := handlers.NewAuditHandler(base, cfg.Audit)
	rg.GET("/audit/:entity/:id", middleware.RequireRole(adminRoles...), handler.History)
}
