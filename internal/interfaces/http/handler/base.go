package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
	"github.com/kekhai/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// TraceIDHeader exposes the trace of a failed request so it can be looked up
const TraceIDHeader = "X-Trace-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID assigned by the logging middleware
func getRequestID(c *gin.Context) string {
	return logger.GetRequestID(c.Request.Context())
}

// actor returns the caller identity or writes a 401
func (h *BaseHandler) actor(c *gin.Context) (appdecl.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Caller identity missing")
	}
	return actor, ok
}

// pathID parses the :id path parameter or writes a 400
func (h *BaseHandler) pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds the body when one was sent; an empty body keeps the zero value
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, obj)
}

// bindJSON binds and validates the body, writing a 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain errors to HTTP responses. Anything that is not a
// domain error is logged and reported as a 500 without leaking details.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()
	if traceID := telemetry.GetTraceID(ctx); traceID != "" {
		c.Header(TraceIDHeader, traceID)
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		statusCode, code := dto.GetHTTPStatusForDomainError(domainErr)
		if statusCode >= http.StatusInternalServerError {
			logger.FromContext(ctx).Error("request failed", zap.String("code", code), zap.Error(err))
		}
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, getRequestID(c)))
		return
	}

	logger.FromContext(ctx).Error("unexpected error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}
