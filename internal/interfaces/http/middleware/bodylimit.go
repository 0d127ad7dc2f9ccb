package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
)

// ErrCodeRequestTooLarge is returned when the declared body exceeds the limit
const ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				logger.GetRequestID(c.Request.Context()),
			))
			return
		}

		// Chunked bodies carry no length; cap the reader instead
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
