// Package middleware provides HTTP middleware for the declaration API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds the request id copied into span attributes
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "kekhai-backend",
		Enabled:     true,
	}
}

// TracingWithConfig wraps otelgin. Span names follow "HTTP METHOD route"
// (e.g. "POST /api/v1/declarations/:id/submit").
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher copies request_id and user_id onto the current span. It must
// run after Identity.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			ctx := c.Request.Context()
			if requestID := logger.GetRequestID(ctx); requestID != "" {
				if len(requestID) > MaxRequestIDLength {
					requestID = requestID[:MaxRequestIDLength]
				}
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if actor, ok := GetActor(c); ok {
				span.SetAttributes(
					attribute.String("user_id", actor.UserID.String()),
					attribute.Bool("user.admin", actor.IsAdmin),
				)
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks spans with error status for 4xx/5xx responses.
// It must run after the tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		var errorMessage string
		switch statusCode {
		case http.StatusNotFound:
			errorMessage = "Not Found"
		case http.StatusConflict:
			errorMessage = "Conflict"
		case http.StatusUnauthorized:
			errorMessage = "Unauthorized"
		default:
			if statusCode >= http.StatusInternalServerError {
				errorMessage = "Internal Server Error"
			} else {
				errorMessage = "Client Error"
			}
		}
		span.SetStatus(codes.Error, errorMessage)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
