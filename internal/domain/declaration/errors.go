package declaration

import (
	"fmt"

	"github.com/kekhai/backend/internal/domain/shared"
)

// Error codes raised by the declaration context
const (
	CodeDuplicateCode            = "DUPLICATE_CODE"
	CodeInvalidIssuingOrg        = "INVALID_ISSUING_ORGANIZATION"
	CodeInvalidTransition        = "INVALID_TRANSITION"
	CodeStatusConflict           = "STATUS_CONFLICT"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeIncompleteParticipant    = "INCOMPLETE_PARTICIPANT"
	CodeNoParticipants           = "NO_PARTICIPANTS"
	CodeParticipantNotInSource   = "PARTICIPANT_NOT_IN_DECLARATION"
	CodeDeclarationLocked        = "DECLARATION_LOCKED"
	CodePaymentNotPending        = "PAYMENT_NOT_PENDING"
	CodeActivePaymentExists      = "ACTIVE_PAYMENT_EXISTS"
	CodeInvalidPaymentMethod     = "INVALID_PAYMENT_METHOD"
	CodeReasonRequired           = "REASON_REQUIRED"
	CodeInvalidParticipant       = "INVALID_PARTICIPANT"
	CodeCompletedPaymentOnDelete = "COMPLETED_PAYMENT_EXISTS"
	CodeStoreFailure             = "STORE_FAILURE"
	CodeOperationAborted         = "OPERATION_ABORTED"
)

// ErrDuplicateCode is returned by stores when a generated code collides with an existing one
var ErrDuplicateCode = shared.NewConflictError(CodeDuplicateCode, "Generated code already exists")

// ErrStatusConflict is the sentinel for compare-and-swap misses on status
var ErrStatusConflict = shared.NewConflictError(CodeStatusConflict, "Status was changed by another process")

// NewStatusConflictError reports that the stored status diverged from the expected pre-state
func NewStatusConflictError(id fmt.Stringer, expected, actual Status) *shared.DomainError {
	return shared.NewConflictError(CodeStatusConflict,
		fmt.Sprintf("Declaration %s expected status %s but found %s", id, expected, actual))
}

func invalidTransition(from, to Status) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Cannot move declaration from %s to %s", from, to))
}

// NewPaymentConflictError reports that the stored payment status diverged from the expected pre-state
func NewPaymentConflictError(code string, expected, actual PaymentStatus) *shared.DomainError {
	return shared.NewConflictError(CodeStatusConflict,
		fmt.Sprintf("Payment %s expected status %s but found %s", code, expected, actual))
}
