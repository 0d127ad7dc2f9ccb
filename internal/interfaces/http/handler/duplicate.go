package handler

import (
	"github.com/gin-gonic/gin"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
	"github.com/kekhai/backend/internal/interfaces/http/middleware"
)

// DuplicateHandler serves the read-only duplicate participant scan
type DuplicateHandler struct {
	BaseHandler
	service *appdecl.DuplicateService
}

// NewDuplicateHandler creates a new DuplicateHandler
func NewDuplicateHandler(service *appdecl.DuplicateService) *DuplicateHandler {
	return &DuplicateHandler{service: service}
}

// Scan godoc
// @Summary      Group participants sharing an insurance code or a normalized name
// @Tags         duplicates
// @Param        all_owners query bool false "Scan every owner (admin only)"
// @Success      200 {object} dto.Response
// @Router       /duplicates [get]
func (h *DuplicateHandler) Scan(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var query dto.DuplicateScanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.service.Scan(c.Request.Context(), appdecl.DuplicateScanRequest{
		Actor:     actor,
		AllOwners: query.AllOwners,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
