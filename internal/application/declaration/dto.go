package declaration

import (
	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
)

// Actor identifies who performs an operation. IsAdmin is decided by the
// identity provider and only widens list queries.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Warning codes returned next to an otherwise successful result
const (
	WarningFanoutFailed   = "FANOUT_FAILED"
	WarningNoParticipants = "NO_PARTICIPANTS"
	WarningPaymentExpired = "PAYMENT_EXPIRED"
)

// Warning reports a non-fatal anomaly after the primary change committed
type Warning struct {
	Code          string    `json:"code"`
	Message       string    `json:"message"`
	DeclarationID uuid.UUID `json:"declaration_id"`
	Operation     string    `json:"operation"`
}

// Result carries the updated entity and any soft warnings
type Result[T any] struct {
	Value    T         `json:"value"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning with the code was raised
func (r *Result[T]) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func newResult[T any](value T, warnings []Warning) *Result[T] {
	return &Result[T]{Value: value, Warnings: warnings}
}

// CreateDeclarationRequest creates a draft declaration
type CreateDeclarationRequest struct {
	Actor        Actor
	Type         string
	Name         string
	Organization declaration.IssuingOrganization
}

// AddParticipantRequest appends a participant to a draft declaration
type AddParticipantRequest struct {
	Actor         Actor
	DeclarationID uuid.UUID
	Input         declaration.ParticipantInput
}

// UpdateParticipantRequest edits a participant of a draft declaration
type UpdateParticipantRequest struct {
	Actor         Actor
	ParticipantID uuid.UUID
	Input         declaration.ParticipantInput
}

// RemoveParticipantRequest deletes a participant of a draft declaration
type RemoveParticipantRequest struct {
	Actor         Actor
	ParticipantID uuid.UUID
}

// TransitionRequest drives a status transition. When ExpectedStatus is nil the
// status read at the start of the operation is used as the compare-and-swap guard.
type TransitionRequest struct {
	Actor          Actor
	DeclarationID  uuid.UUID
	ExpectedStatus *declaration.Status
	Notes          string
}

// ApproveRequest approves a reviewable declaration and opens its payment
type ApproveRequest struct {
	Actor          Actor
	DeclarationID  uuid.UUID
	ExpectedStatus *declaration.Status
	Method         declaration.PaymentMethod
}

// RejectRequest rejects a non-terminal declaration
type RejectRequest struct {
	Actor          Actor
	DeclarationID  uuid.UUID
	ExpectedStatus *declaration.Status
	Reason         string
}

// ConfirmPaymentRequest settles a pending payment
type ConfirmPaymentRequest struct {
	Actor         Actor
	PaymentID     uuid.UUID
	TransactionID string
	ProofURL      string
	Note          string
}

// ClosePaymentRequest fails or cancels a pending payment
type ClosePaymentRequest struct {
	Actor     Actor
	PaymentID uuid.UUID
	Reason    string
}

// ReissuePaymentRequest opens a new payment after the previous one failed or was cancelled
type ReissuePaymentRequest struct {
	Actor         Actor
	DeclarationID uuid.UUID
	Method        declaration.PaymentMethod
}

// SplitRequest moves selected participants into a new derived declaration
type SplitRequest struct {
	Actor               Actor
	SourceDeclarationID uuid.UUID
	ParticipantIDs      []uuid.UUID
	Name                string
}

// AssignCaseFileCodeRequest sets the case file code on a declaration and its participants
type AssignCaseFileCodeRequest struct {
	Actor         Actor
	DeclarationID uuid.UUID
	CaseFileCode  string
}

// DeleteDeclarationRequest removes a declaration with its participants and payments
type DeleteDeclarationRequest struct {
	Actor         Actor
	DeclarationID uuid.UUID
}

// ApprovalResult is returned by ApproveWithPayment and ReissuePayment
type ApprovalResult struct {
	Declaration *declaration.Declaration `json:"declaration"`
	Payment     *declaration.Payment     `json:"payment"`
}

// PaymentOutcome is returned by the payment ledger workflows
type PaymentOutcome struct {
	Declaration         *declaration.Declaration `json:"declaration"`
	Payment             *declaration.Payment     `json:"payment"`
	ParticipantsUpdated int64                    `json:"participants_updated"`
}

// SplitResult is returned by SplitDeclaration
type SplitResult struct {
	Source  *declaration.Declaration `json:"source"`
	Derived *declaration.Declaration `json:"derived"`
	Moved   int64                    `json:"moved"`
}

// RepairResult is returned by RepairParticipants
type RepairResult struct {
	Declaration         *declaration.Declaration      `json:"declaration"`
	ParticipantStatus   declaration.ParticipantStatus `json:"participant_status"`
	PaymentStatus       declaration.SettlementStatus  `json:"payment_status"`
	ParticipantsUpdated int64                         `json:"participants_updated"`
}
