package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out of the API
const RequestIDHeader = "X-Request-ID"

const ginLoggerKey = "logger"

// GinMiddleware assigns a request id, attaches a request-scoped logger to the
// request context and logs every request when it completes.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := logger.With(
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		ctx, reqLogger := WithRequestID(c.Request.Context(), reqLogger, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if userID := GetUserID(c.Request.Context()); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		final := WithTraceContext(c.Request.Context(), reqLogger)
		msg := "HTTP Request"
		switch {
		case status >= http.StatusInternalServerError:
			final.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			final.Warn(msg, fields...)
		default:
			final.Info(msg, fields...)
		}
	}
}

// Recovery returns a gin middleware that recovers from panics and logs them
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from the gin context
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(ginLoggerKey); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

// SetGinLogger replaces the request-scoped logger, e.g. once the caller is known
func SetGinLogger(c *gin.Context, logger *zap.Logger) {
	c.Set(ginLoggerKey, logger)
}
