package declaration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentLedger records payments. It never computes amounts; callers pass them in.
type PaymentLedger struct {
	payments declaration.PaymentRepository
	codes    declaration.CodeGenerator
	ttl      time.Duration
	now      func() time.Time
}

// NewPaymentLedger creates a ledger over the payment repository
func NewPaymentLedger(payments declaration.PaymentRepository, codes declaration.CodeGenerator, ttl time.Duration, now func() time.Time) *PaymentLedger {
	if now == nil {
		now = time.Now
	}
	return &PaymentLedger{payments: payments, codes: codes, ttl: ttl, now: now}
}

// withRepository returns a copy of the ledger bound to another repository (e.g. a transaction)
func (l *PaymentLedger) withRepository(payments declaration.PaymentRepository) *PaymentLedger {
	copied := *l
	copied.payments = payments
	return &copied
}

// CreatePending records a new pending payment with a fresh code.
// A code collision surfaces as ErrDuplicateCode for the caller to retry.
func (l *PaymentLedger) CreatePending(ctx context.Context, declarationID uuid.UUID, amount decimal.Decimal, method declaration.PaymentMethod, actor uuid.UUID) (*declaration.Payment, error) {
	payment, err := declaration.NewPayment(l.codes.PaymentCode(), declarationID, amount, method, actor, l.ttl)
	if err != nil {
		return nil, err
	}
	if err := l.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Complete moves a pending payment to completed as of at
func (l *PaymentLedger) Complete(ctx context.Context, paymentID, actor uuid.UUID, details declaration.ConfirmationDetails, at time.Time) (*declaration.Payment, error) {
	return l.update(ctx, paymentID, func(p *declaration.Payment) error {
		return p.Complete(actor, details, at)
	})
}

// Fail moves a pending payment to failed
func (l *PaymentLedger) Fail(ctx context.Context, paymentID, actor uuid.UUID, reason string) (*declaration.Payment, error) {
	return l.update(ctx, paymentID, func(p *declaration.Payment) error {
		return p.Fail(actor, reason, l.now())
	})
}

// Cancel moves a pending payment to cancelled
func (l *PaymentLedger) Cancel(ctx context.Context, paymentID, actor uuid.UUID, reason string) (*declaration.Payment, error) {
	return l.update(ctx, paymentID, func(p *declaration.Payment) error {
		return p.Cancel(actor, reason, l.now())
	})
}

// Get returns a payment by id
func (l *PaymentLedger) Get(ctx context.Context, paymentID uuid.UUID) (*declaration.Payment, error) {
	return l.payments.FindByID(ctx, paymentID)
}

// LatestForDeclaration returns the most recent payment of a declaration
func (l *PaymentLedger) LatestForDeclaration(ctx context.Context, declarationID uuid.UUID) (*declaration.Payment, error) {
	return l.payments.FindLatestByDeclaration(ctx, declarationID)
}

// History returns every payment recorded for a declaration
func (l *PaymentLedger) History(ctx context.Context, declarationID uuid.UUID) ([]declaration.Payment, error) {
	return l.payments.ListByDeclaration(ctx, declarationID)
}

func (l *PaymentLedger) update(ctx context.Context, paymentID uuid.UUID, mutate func(p *declaration.Payment) error) (*declaration.Payment, error) {
	payment, err := l.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	expected := payment.Status
	if err := mutate(payment); err != nil {
		return nil, err
	}
	if err := l.payments.UpdateStatus(ctx, payment, expected); err != nil {
		return nil, shared.WrapError(err, "PAYMENT_UPDATE_FAILED", "Failed to update payment "+payment.Code)
	}
	return payment, nil
}
