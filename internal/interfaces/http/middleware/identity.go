package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
)

// Identity headers set by the upstream identity provider
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "admin"

	actorKey = "actor"
)

// Identity reads the caller identity from the upstream headers. Requests
// without a valid user id are rejected with 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		userID, err := uuid.Parse(raw)
		if raw == "" || err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"Missing or invalid "+HeaderUserID+" header",
				logger.GetRequestID(c.Request.Context()),
			))
			return
		}

		actor := appdecl.Actor{
			UserID:  userID,
			IsAdmin: strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderUserRole)), RoleAdmin),
		}
		c.Set(actorKey, actor)

		ctx, reqLogger := logger.WithUserID(c.Request.Context(), logger.GetGinLogger(c), userID.String())
		c.Request = c.Request.WithContext(ctx)
		logger.SetGinLogger(c, reqLogger)

		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := GetActor(c); !ok || !actor.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden,
				"Admin role required",
				logger.GetRequestID(c.Request.Context()),
			))
			return
		}
		c.Next()
	}
}

// GetActor returns the identity stored by Identity
func GetActor(c *gin.Context) (appdecl.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return appdecl.Actor{}, false
	}
	actor, ok := v.(appdecl.Actor)
	return actor, ok
}
