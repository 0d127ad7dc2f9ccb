package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/interfaces/http/dto"
)

// PaymentHandler serves payment ledger endpoints
type PaymentHandler struct {
	BaseHandler
	engine *appdecl.Engine
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(engine *appdecl.Engine) *PaymentHandler {
	return &PaymentHandler{engine: engine}
}

// GetByDeclaration godoc
// @Summary      Latest payment of a declaration
// @Tags         payments
// @Param        id path string true "Declaration ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /declarations/{id}/payment [get]
func (h *PaymentHandler) GetByDeclaration(c *gin.Context) {
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	p, err := h.engine.GetPaymentByDeclaration(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// History godoc
// @Summary      Every payment of a declaration, newest first
// @Tags         payments
// @Router       /declarations/{id}/payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	payments, err := h.engine.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Get godoc
// @Summary      Get a payment
// @Tags         payments
// @Router       /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}
	p, err := h.engine.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// Confirm godoc
// @Summary      Confirm a pending payment
// @Description  Completes the payment and moves the declaration back into processing
// @Tags         payments
// @Param        request body dto.ConfirmPaymentBody false "Bank transfer details"
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /payments/{id}/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}
	var body dto.ConfirmPaymentBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.engine.ConfirmPayment(c.Request.Context(), appdecl.ConfirmPaymentRequest{
		Actor:         actor,
		PaymentID:     id,
		TransactionID: body.TransactionID,
		ProofURL:      body.ProofURL,
		Note:          body.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Fail godoc
// @Summary      Mark a pending payment as failed
// @Tags         payments
// @Router       /payments/{id}/fail [post]
func (h *PaymentHandler) Fail(c *gin.Context) {
	h.close(c, h.engine.FailPayment)
}

// Cancel godoc
// @Summary      Cancel a pending payment
// @Tags         payments
// @Router       /payments/{id}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	h.close(c, h.engine.CancelPayment)
}

type closeFunc func(ctx context.Context, req appdecl.ClosePaymentRequest) (*appdecl.Result[*appdecl.PaymentOutcome], error)

func (h *PaymentHandler) close(c *gin.Context, fn closeFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}
	var body dto.ClosePaymentBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := fn(c.Request.Context(), appdecl.ClosePaymentRequest{Actor: actor, PaymentID: id, Reason: body.Reason})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reissue godoc
// @Summary      Open a new payment after the previous one failed or was cancelled
// @Tags         payments
// @Param        request body dto.ReissueBody false "Payment method"
// @Router       /declarations/{id}/payment/reissue [post]
func (h *PaymentHandler) Reissue(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "declaration")
	if !ok {
		return
	}
	var body dto.ReissueBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.engine.ReissuePayment(c.Request.Context(), appdecl.ReissuePaymentRequest{
		Actor:         actor,
		DeclarationID: id,
		Method:        body.Method,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
