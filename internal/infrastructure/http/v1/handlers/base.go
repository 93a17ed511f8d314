// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"invoicer/internal/core/apperror"
	appctx "invoicer/internal/core/context"
	"invoicer/internal/core/id"
	"invoicer/internal/core/retry"
	"invoicer/internal/domain"
	"invoicer/internal/infrastructure/http/v1/dto"
	"invoicer/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	// retry wraps operations that allocate a number
	retry retry.Policy
}

// NewBaseHandler creates a new base handler.
func NewBaseHandler(policy retry.Policy) *BaseHandler {
	return &BaseHandler{retry: policy}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseID reads the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (id.ID, bool) {
	raw := c.Param("id")
	v, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id").WithDetail("id", raw))
		return id.ID{}, false
	}
	return v, true
}

// ListFilter reads the common list query parameters.
func (h *BaseHandler) ListFilter(c *gin.Context) domain.ListFilter {
	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"
	return filter
}

// WithRetry runs op under the number-allocation retry policy.
// A spent budget becomes NUMBER_GENERATION_FAILED (500).
func (h *BaseHandler) WithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := h.retry
	policy.OnRetry = func(err error, attempt int, _ time.Duration) {
		logger.Warn(ctx, "retrying number allocation", "attempt", attempt, "error", err)
	}

	err := policy.Do(ctx, op)
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		logger.Error(ctx, "number allocation retries exhausted",
			"attempts", exhausted.Attempts,
			"user_id", appctx.GetUserID(ctx),
			"error", exhausted.Last,
		)
		return apperror.NewNumberGenerationFailed(exhausted.Attempts, exhausted.Last)
	}
	return err
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// CreatedID sends 201 response with ID.
func (h *BaseHandler) CreatedID(c *gin.Context, v id.ID) {
	c.JSON(http.StatusCreated, dto.NewIDResponse(v))
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
