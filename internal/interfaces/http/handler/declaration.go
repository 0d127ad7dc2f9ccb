package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
	"github.com/kekhai/backend/internal/interfaces/http/middleware"
)

// DeclarationHandler serves declaration and participant endpoints
type DeclarationHandler struct {
	BaseHandler
	engine *appdecl.Engine
}

// NewDeclarationHandler creates a new DeclarationHandler
func NewDeclarationHandler(engine *appdecl.Engine) *DeclarationHandler {
	return &DeclarationHandler{engine: engine}
}

// Create godoc
// @Summary      Create a draft declaration
// @Tags         declarations
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateDeclarationRequest true "Declaration"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /declarations [post]
func (h *DeclarationHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.CreateDeclarationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.engine.CreateDeclaration(c.Request.Context(), appdecl.CreateDeclarationRequest{
		Actor:        actor,
		Type:         req.Type,
		Name:         req.Name,
		Organization: req.Organization(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get godoc
// @Summary      Get a declaration
// @Tags         declarations
// @Produce      json
// @Param        id path string true "Declaration ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /declarations/{id} [get]
func (h *DeclarationHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	d, err := h.engine.GetDeclaration(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}

// ListMine godoc
// @Summary      List the caller's declarations
// @Tags         declarations
// @Produce      json
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Param        status query []string false "Status filter"
// @Success      200 {object} dto.Response
// @Router       /declarations [get]
func (h *DeclarationHandler) ListMine(c *gin.Context) {
	h.list(c, h.engine.ListByOwner)
}

// ListForReview godoc
// @Summary      List declarations awaiting staff work
// @Tags         declarations
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /declarations/review [get]
func (h *DeclarationHandler) ListForReview(c *gin.Context) {
	h.list(c, h.engine.ListForReview)
}

type listFunc func(ctx context.Context, actor appdecl.Actor, query appdecl.ListQuery) (*shared.Paginated[declaration.Declaration], error)

func (h *DeclarationHandler) list(c *gin.Context, fn listFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	req := dto.DeclarationListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := fn(c.Request.Context(), actor, appdecl.ListQuery{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
		Statuses: req.Statuses(),
		Type:     req.Type,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Delete godoc
// @Summary      Delete a declaration with its participants and payments (admin)
// @Tags         declarations
// @Param        id path string true "Declaration ID" format(uuid)
// @Success      204
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /declarations/{id} [delete]
func (h *DeclarationHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	if err := h.engine.DeleteDeclaration(c.Request.Context(), appdecl.DeleteDeclarationRequest{Actor: actor, DeclarationID: id}); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Submit godoc
// @Summary      Submit a draft declaration
// @Tags         declarations
// @Param        id path string true "Declaration ID" format(uuid)
// @Param        request body dto.TransitionBody false "Guard"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /declarations/{id}/submit [post]
func (h *DeclarationHandler) Submit(c *gin.Context) {
	h.transition(c, h.engine.SubmitDeclaration)
}

// SetProcessing godoc
// @Summary      Start staff processing
// @Tags         declarations
// @Router       /declarations/{id}/processing [post]
func (h *DeclarationHandler) SetProcessing(c *gin.Context) {
	h.transition(c, h.engine.SetProcessing)
}

// MarkPaid godoc
// @Summary      Mark a processed declaration as paid
// @Tags         declarations
// @Router       /declarations/{id}/paid [post]
func (h *DeclarationHandler) MarkPaid(c *gin.Context) {
	h.transition(c, h.engine.MarkPaid)
}

// FinalizeApproval godoc
// @Summary      Finalize approval
// @Tags         declarations
// @Router       /declarations/{id}/finalize [post]
func (h *DeclarationHandler) FinalizeApproval(c *gin.Context) {
	h.transition(c, h.engine.FinalizeApproval)
}

// SendRequest godoc
// @Summary      Send the request to the authority
// @Tags         declarations
// @Router       /declarations/{id}/request [post]
func (h *DeclarationHandler) SendRequest(c *gin.Context) {
	h.transition(c, h.engine.SendRequest)
}

// ConfirmRequest godoc
// @Summary      Record the authority's confirmation
// @Tags         declarations
// @Router       /declarations/{id}/request-confirm [post]
func (h *DeclarationHandler) ConfirmRequest(c *gin.Context) {
	h.transition(c, h.engine.ConfirmRequest)
}

// Complete godoc
// @Summary      Complete a declaration
// @Tags         declarations
// @Router       /declarations/{id}/complete [post]
func (h *DeclarationHandler) Complete(c *gin.Context) {
	h.transition(c, h.engine.Complete)
}

type transitionFunc func(ctx context.Context, req appdecl.TransitionRequest) (*appdecl.Result[*declaration.Declaration], error)

func (h *DeclarationHandler) transition(c *gin.Context, fn transitionFunc) {
	req, ok := h.transitionRequest(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *DeclarationHandler) transitionRequest(c *gin.Context) (appdecl.TransitionRequest, bool) {
	actor, ok := h.actor(c)
	if !ok {
		return appdecl.TransitionRequest{}, false
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return appdecl.TransitionRequest{}, false
	}
	var body dto.TransitionBody
	if !h.bindOptionalJSON(c, &body) {
		return appdecl.TransitionRequest{}, false
	}
	return appdecl.TransitionRequest{
		Actor:          actor,
		DeclarationID:  id,
		ExpectedStatus: body.ExpectedStatus,
		Notes:          body.Notes,
	}, true
}

// Repair godoc
// @Summary      Re-apply the declaration status to its participants
// @Tags         declarations
// @Router       /declarations/{id}/repair [post]
func (h *DeclarationHandler) Repair(c *gin.Context) {
	req, ok := h.transitionRequest(c)
	if !ok {
		return
	}
	result, err := h.engine.RepairParticipants(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Approve godoc
// @Summary      Approve a declaration and open its payment
// @Tags         declarations
// @Param        request body dto.ApproveBody false "Guard and payment method"
// @Router       /declarations/{id}/approve [post]
func (h *DeclarationHandler) Approve(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.ApproveBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.engine.ApproveWithPayment(c.Request.Context(), appdecl.ApproveRequest{
		Actor:          actor,
		DeclarationID:  id,
		ExpectedStatus: body.ExpectedStatus,
		Method:         body.Method,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reject godoc
// @Summary      Reject a declaration
// @Tags         declarations
// @Param        request body dto.RejectBody true "Reason"
// @Router       /declarations/{id}/reject [post]
func (h *DeclarationHandler) Reject(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.RejectBody
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.Reject(c.Request.Context(), appdecl.RejectRequest{
		Actor:          actor,
		DeclarationID:  id,
		ExpectedStatus: body.ExpectedStatus,
		Reason:         body.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AssignCaseFileCode godoc
// @Summary      Set the case file code on a declaration and its participants
// @Tags         declarations
// @Param        request body dto.CaseFileBody true "Case file code"
// @Router       /declarations/{id}/case-file [post]
func (h *DeclarationHandler) AssignCaseFileCode(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.CaseFileBody
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.AssignCaseFileCode(c.Request.Context(), appdecl.AssignCaseFileCodeRequest{
		Actor:         actor,
		DeclarationID: id,
		CaseFileCode:  body.CaseFileCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Split godoc
// @Summary      Move participants into a new derived draft declaration
// @Tags         declarations
// @Param        request body dto.SplitBody true "Participants to move"
// @Router       /declarations/{id}/split [post]
func (h *DeclarationHandler) Split(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.SplitBody
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.SplitDeclaration(c.Request.Context(), appdecl.SplitRequest{
		Actor:               actor,
		SourceDeclarationID: id,
		ParticipantIDs:      body.ParticipantIDs,
		Name:                body.Name,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// AddParticipant godoc
// @Summary      Add a participant to a draft declaration
// @Tags         participants
// @Param        request body dto.ParticipantRequest true "Participant"
// @Router       /declarations/{id}/participants [post]
func (h *DeclarationHandler) AddParticipant(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.ParticipantRequest
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.AddParticipant(c.Request.Context(), appdecl.AddParticipantRequest{
		Actor:         actor,
		DeclarationID: id,
		Input:         body.Input(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListParticipants godoc
// @Summary      List the participants of a declaration
// @Tags         participants
// @Router       /declarations/{id}/participants [get]
func (h *DeclarationHandler) ListParticipants(c *gin.Context) {
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	participants, err := h.engine.ListParticipants(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, participants)
}

// UpdateParticipant godoc
// @Summary      Edit a participant of a draft declaration
// @Tags         participants
// @Router       /participants/{id} [put]
func (h *DeclarationHandler) UpdateParticipant(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "participant")
	if !ok {
		return
	}
	var body dto.ParticipantRequest
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.UpdateParticipant(c.Request.Context(), appdecl.UpdateParticipantRequest{
		Actor:         actor,
		ParticipantID: id,
		Input:         body.Input(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RemoveParticipant godoc
// @Summary      Remove a participant from a draft declaration
// @Tags         participants
// @Router       /participants/{id} [delete]
func (h *DeclarationHandler) RemoveParticipant(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "participant")
	if !ok {
		return
	}
	if err := h.engine.RemoveParticipant(c.Request.Context(), appdecl.RemoveParticipantRequest{Actor: actor, ParticipantID: id}); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
