package declaration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsValid checks if the payment status is known
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for completed, failed and cancelled
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod is how the contribution is settled
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodQRCode       PaymentMethod = "qr_code"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodQRCode, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// ConfirmationDetails is what staff record when a payment settles.
// ProofURL is stored verbatim.
type ConfirmationDetails struct {
	TransactionID string
	ProofURL      string
	Note          string
}

// Payment is the settlement record for a declaration's contribution total
type Payment struct {
	shared.BaseAggregateRoot
	Code             string          `json:"code"`
	DeclarationID    uuid.UUID       `json:"declaration_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	Status           PaymentStatus   `json:"status"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	ProofURL         string          `json:"proof_url,omitempty"`
	ConfirmationNote string          `json:"confirmation_note,omitempty"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ConfirmedBy      *uuid.UUID      `json:"confirmed_by,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
}

// NewPayment creates a pending payment. The amount is supplied by the caller.
func NewPayment(code string, declarationID uuid.UUID, amount decimal.Decimal, method PaymentMethod, createdBy uuid.UUID, ttl time.Duration) (*Payment, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewValidationError("INVALID_CODE", "Payment code cannot be empty")
	}
	if declarationID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_DECLARATION", "Declaration ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "Payment amount must be positive")
	}
	if method == "" {
		method = PaymentMethodBankTransfer
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidPaymentMethod, fmt.Sprintf("Unknown payment method %q", method))
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		DeclarationID:     declarationID,
		Amount:            amount,
		Method:            method,
		Status:            PaymentPending,
		CreatedBy:         createdBy,
	}
	if ttl > 0 {
		expires := p.CreatedAt.Add(ttl)
		p.ExpiresAt = &expires
	}
	return p, nil
}

// Complete settles the payment
func (p *Payment) Complete(actor uuid.UUID, details ConfirmationDetails, at time.Time) error {
	if err := p.ensurePending(); err != nil {
		return err
	}
	p.Status = PaymentCompleted
	p.TransactionID = strings.TrimSpace(details.TransactionID)
	p.ProofURL = details.ProofURL
	p.ConfirmationNote = strings.TrimSpace(details.Note)
	p.CompletedAt = &at
	p.ConfirmedBy = &actor
	p.touch(at)
	return nil
}

// Fail records that the payment did not go through
func (p *Payment) Fail(actor uuid.UUID, reason string, at time.Time) error {
	if err := p.ensurePending(); err != nil {
		return err
	}
	p.Status = PaymentFailed
	p.FailureReason = strings.TrimSpace(reason)
	p.ConfirmedBy = &actor
	p.touch(at)
	return nil
}

// Cancel withdraws a pending payment
func (p *Payment) Cancel(actor uuid.UUID, reason string, at time.Time) error {
	if err := p.ensurePending(); err != nil {
		return err
	}
	p.Status = PaymentCancelled
	p.FailureReason = strings.TrimSpace(reason)
	p.ConfirmedBy = &actor
	p.touch(at)
	return nil
}

// IsExpired reports whether a pending payment has outlived its expiry
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentPending && p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

func (p *Payment) ensurePending() error {
	if p.Status != PaymentPending {
		return shared.NewDomainError(CodePaymentNotPending,
			fmt.Sprintf("Payment %s is %s; only pending payments can change status", p.Code, p.Status))
	}
	return nil
}

func (p *Payment) touch(at time.Time) {
	p.UpdatedAt = at
	p.IncrementVersion()
}
