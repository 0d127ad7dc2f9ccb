package declaration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CreateDeclaration inserts a draft declaration under a freshly generated code.
// Code collisions are retried with a new code.
func (e *Engine) CreateDeclaration(ctx context.Context, req CreateDeclarationRequest) (result *Result[*declaration.Declaration], err error) {
	ctx, done := e.begin(ctx, OpCreate, uuid.Nil)
	defer func() { err = done(err) }()

	var created *declaration.Declaration
	err = e.retryOnDuplicateCode(ctx, OpCreate, func(attempt int) error {
		d, err := declaration.NewDeclaration(e.codes.DeclarationCode(), req.Actor.UserID, req.Type, req.Name, req.Organization)
		if err != nil {
			return err
		}
		if err := e.declarations.Create(ctx, d); err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("declaration created",
		zap.String("declaration_id", created.ID.String()),
		zap.String("code", created.Code),
		zap.String("owner_id", created.OwnerID.String()),
	)
	e.publishPending(ctx, created)
	return newResult(created, nil), nil
}

// SubmitDeclaration moves a draft into review once every participant carries its required fields
func (e *Engine) SubmitDeclaration(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpSubmit, req, transitionRule{
		precheck: func(ctx context.Context, s stores, d *declaration.Declaration) error {
			participants, err := s.participants.ListByDeclaration(ctx, d.ID)
			if err != nil {
				return err
			}
			if len(participants) == 0 {
				return shared.NewValidationError(declaration.CodeNoParticipants, "Declaration has no participants to submit")
			}
			return declaration.ValidateForSubmission(participants)
		},
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.Submit(actor)
		},
		markSubmitted: true,
	})
}

// Reject terminates the declaration and cascades rejected to every participant
func (e *Engine) Reject(ctx context.Context, req RejectRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpReject, TransitionRequest{
		Actor:          req.Actor,
		DeclarationID:  req.DeclarationID,
		ExpectedStatus: req.ExpectedStatus,
		Notes:          req.Reason,
	}, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.Reject(actor, req.Reason)
		},
	})
}

// SetProcessing records that staff started working on the declaration
func (e *Engine) SetProcessing(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpSetProcessing, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.StartProcessing(actor, req.Notes)
		},
	})
}

// MarkPaid records the authority's acknowledgement of the contribution
func (e *Engine) MarkPaid(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpMarkPaid, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.MarkPaid(actor)
		},
	})
}

// FinalizeApproval marks the declaration approved by the insurance authority
func (e *Engine) FinalizeApproval(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpFinalizeApproval, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.FinalizeApproval(actor)
		},
	})
}

// SendRequest records a follow-up request to the insurance authority
func (e *Engine) SendRequest(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpSendRequest, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.SendRequest(actor, req.Notes)
		},
	})
}

// ConfirmRequest records the authority's answer to a follow-up request
func (e *Engine) ConfirmRequest(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpConfirmRequest, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.ConfirmRequest(actor)
		},
	})
}

// Complete closes the declaration
func (e *Engine) Complete(ctx context.Context, req TransitionRequest) (*Result[*declaration.Declaration], error) {
	return e.transition(ctx, OpComplete, req, transitionRule{
		apply: func(d *declaration.Declaration, actor uuid.UUID) error {
			return d.Complete(actor)
		},
	})
}

// ApproveWithPayment recomputes the total from the current participants, moves the
// declaration to pending_payment, opens a pending payment for that total and links
// every participant to it.
func (e *Engine) ApproveWithPayment(ctx context.Context, req ApproveRequest) (result *Result[*ApprovalResult], err error) {
	ctx, done := e.begin(ctx, OpApprove, req.DeclarationID)
	defer func() { err = done(err) }()

	if req.Method != "" && !req.Method.IsValid() {
		return nil, shared.NewValidationError(declaration.CodeInvalidPaymentMethod,
			fmt.Sprintf("Unknown payment method %q", req.Method))
	}

	var (
		approval *ApprovalResult
		warnings []Warning
	)
	err = e.retryOnDuplicateCode(ctx, OpApprove, func(attempt int) error {
		approval = nil
		w, err := e.commit(ctx, OpApprove, func(ctx context.Context, s stores) (uuid.UUID, error) {
			d, err := s.declarations.FindByID(ctx, req.DeclarationID)
			if err != nil {
				return uuid.Nil, err
			}
			expected, err := guardStatus(d, req.ExpectedStatus)
			if err != nil {
				return uuid.Nil, err
			}
			participants, err := s.participants.ListByDeclaration(ctx, d.ID)
			if err != nil {
				return uuid.Nil, err
			}
			total := declaration.ComputeTotal(participants)
			if err := d.ApproveForPayment(req.Actor.UserID, total); err != nil {
				return uuid.Nil, err
			}
			if err := s.declarations.UpdateStatus(ctx, d, expected); err != nil {
				e.logConflict(OpApprove, d, expected, err)
				return uuid.Nil, err
			}
			payment, err := s.ledger.CreatePending(ctx, d.ID, total, req.Method, req.Actor.UserID)
			if err != nil {
				if !s.atomic {
					e.revertApproval(ctx, s, d, expected, req.Actor.UserID, err)
				}
				return uuid.Nil, err
			}
			approval = &ApprovalResult{Declaration: d, Payment: payment}
			return d.ID, nil
		}, func(ctx context.Context, s stores) (int64, error) {
			pending := declaration.SettlementPending
			paymentID := approval.Payment.ID
			return s.participants.BulkUpdateStatus(ctx, approval.Declaration.ID, declaration.BulkStatusUpdate{
				Status:        declaration.ParticipantPendingPayment,
				Actor:         req.Actor.UserID,
				At:            e.now(),
				PaymentStatus: &pending,
				PaymentID:     &paymentID,
			})
		})
		warnings = w
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("declaration approved with payment",
		zap.String("declaration_id", approval.Declaration.ID.String()),
		zap.String("payment_id", approval.Payment.ID.String()),
		zap.String("amount", approval.Payment.Amount.String()),
	)
	e.publishPending(ctx, approval.Declaration)
	return newResult(approval, warnings), nil
}

func (e *Engine) revertApproval(ctx context.Context, s stores, d *declaration.Declaration, previous declaration.Status, actor uuid.UUID, cause error) {
	d.RevertApproval(previous, actor)
	if err := s.declarations.UpdateStatus(ctx, d, declaration.StatusPendingPayment); err != nil {
		e.logger.Error("failed to revert approval after payment could not be recorded",
			zap.String("declaration_id", d.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	e.logger.Warn("approval reverted, payment could not be recorded",
		zap.String("declaration_id", d.ID.String()),
		zap.Error(cause),
	)
}

// transitionRule describes one plain status transition with its participant fan-out
type transitionRule struct {
	precheck      func(ctx context.Context, s stores, d *declaration.Declaration) error
	apply         func(d *declaration.Declaration, actor uuid.UUID) error
	markSubmitted bool
}

func (e *Engine) transition(ctx context.Context, op string, req TransitionRequest, rule transitionRule) (result *Result[*declaration.Declaration], err error) {
	ctx, done := e.begin(ctx, op, req.DeclarationID)
	defer func() { err = done(err) }()

	var updated *declaration.Declaration
	warnings, err := e.commit(ctx, op, func(ctx context.Context, s stores) (uuid.UUID, error) {
		d, err := s.declarations.FindByID(ctx, req.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		expected, err := guardStatus(d, req.ExpectedStatus)
		if err != nil {
			return uuid.Nil, err
		}
		if rule.precheck != nil {
			if err := rule.precheck(ctx, s, d); err != nil {
				return uuid.Nil, err
			}
		}
		if err := rule.apply(d, req.Actor.UserID); err != nil {
			return uuid.Nil, err
		}
		if err := s.declarations.UpdateStatus(ctx, d, expected); err != nil {
			e.logConflict(op, d, expected, err)
			return uuid.Nil, err
		}
		updated = d
		return d.ID, nil
	}, func(ctx context.Context, s stores) (int64, error) {
		return s.participants.BulkUpdateStatus(ctx, updated.ID, declaration.BulkStatusUpdate{
			Status:        declaration.ParticipantStatusFor(updated.Status),
			Actor:         req.Actor.UserID,
			Note:          req.Notes,
			At:            e.now(),
			MarkSubmitted: rule.markSubmitted,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("declaration status changed",
		zap.String("operation", op),
		zap.String("declaration_id", updated.ID.String()),
		zap.String("status", updated.Status.String()),
	)
	e.publishPending(ctx, updated)
	return newResult(updated, warnings), nil
}
