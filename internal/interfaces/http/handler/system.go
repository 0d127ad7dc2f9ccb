package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	db        Pinger
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(db Pinger, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
// @Summary      Liveness and database reachability
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=HealthResponse}
// @Failure      503 {object} dto.Response{data=HealthResponse}
// @Router       /healthz [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
