package declaration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ConfirmPayment settles a pending payment. The declaration leaves pending_payment
// for processing and every participant referencing the payment becomes submitted
// with a completed payment.
func (e *Engine) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (result *Result[*PaymentOutcome], err error) {
	ctx, done := e.begin(ctx, OpConfirmPayment, uuid.Nil)
	defer func() { err = done(err) }()

	outcome := &PaymentOutcome{}
	var expired bool
	warnings, err := e.commit(ctx, OpConfirmPayment, func(ctx context.Context, s stores) (uuid.UUID, error) {
		payment, err := s.ledger.Get(ctx, req.PaymentID)
		if err != nil {
			return uuid.Nil, err
		}
		if payment.Status != declaration.PaymentPending {
			return uuid.Nil, shared.NewDomainError(declaration.CodePaymentNotPending,
				fmt.Sprintf("Payment %s is %s; only pending payments can be confirmed", payment.Code, payment.Status))
		}
		d, err := s.declarations.FindByID(ctx, payment.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		if d.Status != declaration.StatusPendingPayment {
			return uuid.Nil, declaration.NewStatusConflictError(d.ID, declaration.StatusPendingPayment, d.Status)
		}
		confirmedAt := e.now()
		expired = payment.IsExpired(confirmedAt)

		// Declaration CAS precedes the ledger write; a lost race leaves the payment pending.
		if err := d.ConfirmPayment(req.Actor.UserID, confirmedAt); err != nil {
			return uuid.Nil, err
		}
		if err := s.declarations.UpdateStatus(ctx, d, declaration.StatusPendingPayment); err != nil {
			return uuid.Nil, err
		}
		completed, err := s.ledger.Complete(ctx, payment.ID, req.Actor.UserID, declaration.ConfirmationDetails{
			TransactionID: req.TransactionID,
			ProofURL:      req.ProofURL,
			Note:          req.Note,
		}, confirmedAt)
		if err != nil {
			if !s.atomic {
				e.revertConfirmation(ctx, s, d, req.Actor.UserID, err)
			}
			return uuid.Nil, err
		}
		outcome.Declaration = d
		outcome.Payment = completed
		return d.ID, nil
	}, func(ctx context.Context, s stores) (int64, error) {
		n, err := s.participants.MarkPaymentCompleted(ctx, outcome.Payment.ID, declaration.SubmissionStamp{
			Actor: req.Actor.UserID,
			At:    *outcome.Payment.CompletedAt,
		})
		outcome.ParticipantsUpdated = n
		return n, err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		e.logger.Warn("confirmed a payment past its expiry",
			zap.String("declaration_id", outcome.Declaration.ID.String()),
			zap.String("payment_id", outcome.Payment.ID.String()),
		)
		e.metrics.FanoutWarning(OpConfirmPayment, WarningPaymentExpired)
		warnings = append(warnings, Warning{
			Code:          WarningPaymentExpired,
			Message:       fmt.Sprintf("Payment %s was confirmed after it expired", outcome.Payment.Code),
			DeclarationID: outcome.Declaration.ID,
			Operation:     OpConfirmPayment,
		})
	}

	e.logger.Info("payment confirmed",
		zap.String("declaration_id", outcome.Declaration.ID.String()),
		zap.String("payment_id", outcome.Payment.ID.String()),
		zap.Int64("participants", outcome.ParticipantsUpdated),
	)
	e.publishPending(ctx, outcome.Declaration, declaration.NewPaymentConfirmedEvent(outcome.Payment, outcome.Declaration))
	return newResult(outcome, warnings), nil
}

// revertConfirmation undoes the declaration half of a confirmation whose payment
// could not be completed outside a transaction.
func (e *Engine) revertConfirmation(ctx context.Context, s stores, d *declaration.Declaration, actor uuid.UUID, cause error) {
	d.RevertPaymentConfirmation(actor)
	if err := s.declarations.UpdateStatus(ctx, d, declaration.StatusProcessing); err != nil {
		e.logger.Error("declaration left in processing after payment could not be completed",
			zap.String("declaration_id", d.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	e.logger.Warn("reverted declaration to pending_payment after payment could not be completed",
		zap.String("declaration_id", d.ID.String()),
		zap.NamedError("cause", cause),
	)
}

// FailPayment records that a pending payment did not go through
func (e *Engine) FailPayment(ctx context.Context, req ClosePaymentRequest) (*Result[*PaymentOutcome], error) {
	return e.closePayment(ctx, OpFailPayment, req, (*PaymentLedger).Fail)
}

// CancelPayment withdraws a pending payment
func (e *Engine) CancelPayment(ctx context.Context, req ClosePaymentRequest) (*Result[*PaymentOutcome], error) {
	return e.closePayment(ctx, OpCancelPayment, req, (*PaymentLedger).Cancel)
}

type closeFunc func(l *PaymentLedger, ctx context.Context, paymentID, actor uuid.UUID, reason string) (*declaration.Payment, error)

// closePayment moves the payment to a terminal non-completed state. The declaration
// stays in pending_payment awaiting a reissue and the participants drop the link.
func (e *Engine) closePayment(ctx context.Context, op string, req ClosePaymentRequest, closeWith closeFunc) (result *Result[*PaymentOutcome], err error) {
	ctx, done := e.begin(ctx, op, uuid.Nil)
	defer func() { err = done(err) }()

	outcome := &PaymentOutcome{}
	warnings, err := e.commit(ctx, op, func(ctx context.Context, s stores) (uuid.UUID, error) {
		payment, err := closeWith(s.ledger, ctx, req.PaymentID, req.Actor.UserID, req.Reason)
		if err != nil {
			return uuid.Nil, err
		}
		outcome.Payment = payment

		d, err := s.declarations.FindByID(ctx, payment.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		if d.Status == declaration.StatusPendingPayment && d.PaymentStatus == declaration.SettlementPending {
			if err := d.ReleasePayment(); err != nil {
				return uuid.Nil, err
			}
			if err := s.declarations.SaveWithLock(ctx, d); err != nil {
				return uuid.Nil, err
			}
		}
		outcome.Declaration = d
		return d.ID, nil
	}, func(ctx context.Context, s stores) (int64, error) {
		n, err := s.participants.UnlinkPayment(ctx, outcome.Payment.ID, req.Actor.UserID, e.now())
		outcome.ParticipantsUpdated = n
		return n, err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment closed",
		zap.String("operation", op),
		zap.String("declaration_id", outcome.Declaration.ID.String()),
		zap.String("payment_id", outcome.Payment.ID.String()),
		zap.String("status", outcome.Payment.Status.String()),
	)
	return newResult(outcome, warnings), nil
}

// ReissuePayment opens a new pending payment for a declaration still waiting in
// pending_payment after its previous payment failed or was cancelled.
func (e *Engine) ReissuePayment(ctx context.Context, req ReissuePaymentRequest) (result *Result[*ApprovalResult], err error) {
	ctx, done := e.begin(ctx, OpReissuePayment, req.DeclarationID)
	defer func() { err = done(err) }()

	if req.Method != "" && !req.Method.IsValid() {
		return nil, shared.NewValidationError(declaration.CodeInvalidPaymentMethod,
			fmt.Sprintf("Unknown payment method %q", req.Method))
	}

	var (
		reissued *ApprovalResult
		warnings []Warning
	)
	err = e.retryOnDuplicateCode(ctx, OpReissuePayment, func(attempt int) error {
		reissued = nil
		w, err := e.commit(ctx, OpReissuePayment, func(ctx context.Context, s stores) (uuid.UUID, error) {
			d, err := s.declarations.FindByID(ctx, req.DeclarationID)
			if err != nil {
				return uuid.Nil, err
			}
			if d.Status != declaration.StatusPendingPayment {
				return uuid.Nil, shared.NewDomainError(declaration.CodeInvalidTransition,
					fmt.Sprintf("Cannot reissue payment for declaration in %s status", d.Status))
			}
			if err := e.ensureNoActivePayment(ctx, s, d.ID, req.Actor.UserID); err != nil {
				return uuid.Nil, err
			}

			participants, err := s.participants.ListByDeclaration(ctx, d.ID)
			if err != nil {
				return uuid.Nil, err
			}
			total := declaration.ComputeTotal(participants)
			if err := d.RefreshTotal(total); err != nil {
				return uuid.Nil, err
			}
			if err := s.declarations.SaveWithLock(ctx, d); err != nil {
				return uuid.Nil, err
			}
			payment, err := s.ledger.CreatePending(ctx, d.ID, total, req.Method, req.Actor.UserID)
			if err != nil {
				if !s.atomic {
					e.releaseAfterFailedReissue(ctx, s, d, err)
				}
				return uuid.Nil, err
			}
			reissued = &ApprovalResult{Declaration: d, Payment: payment}
			return d.ID, nil
		}, func(ctx context.Context, s stores) (int64, error) {
			pending := declaration.SettlementPending
			paymentID := reissued.Payment.ID
			return s.participants.BulkUpdateStatus(ctx, reissued.Declaration.ID, declaration.BulkStatusUpdate{
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

	e.logger.Info("payment reissued",
		zap.String("declaration_id", reissued.Declaration.ID.String()),
		zap.String("payment_id", reissued.Payment.ID.String()),
		zap.String("amount", reissued.Payment.Amount.String()),
	)
	return newResult(reissued, warnings), nil
}

// ensureNoActivePayment refuses a reissue while a live payment exists. A pending
// payment past its expiry is cancelled so the reissue can replace it.
func (e *Engine) ensureNoActivePayment(ctx context.Context, s stores, declarationID, actor uuid.UUID) error {
	latest, err := s.ledger.LatestForDeclaration(ctx, declarationID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}
	switch latest.Status {
	case declaration.PaymentPending:
		if latest.IsExpired(e.now()) {
			if _, err := s.ledger.Cancel(ctx, latest.ID, actor, "Expired before confirmation"); err != nil {
				return err
			}
			e.logger.Info("cancelled expired payment before reissue",
				zap.String("declaration_id", declarationID.String()),
				zap.String("payment_id", latest.ID.String()),
			)
			return nil
		}
		return shared.NewConflictError(declaration.CodeActivePaymentExists,
			fmt.Sprintf("Payment %s is still pending", latest.Code))
	case declaration.PaymentCompleted:
		return shared.NewDomainError(declaration.CodeInvalidTransition,
			fmt.Sprintf("Payment %s is already completed", latest.Code))
	}
	return nil
}

func (e *Engine) releaseAfterFailedReissue(ctx context.Context, s stores, d *declaration.Declaration, cause error) {
	if err := d.ReleasePayment(); err != nil {
		return
	}
	if err := s.declarations.SaveWithLock(ctx, d); err != nil {
		e.logger.Error("failed to release declaration after reissue failed",
			zap.String("declaration_id", d.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}
