package declaration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// IssuingOrganization links a declaration to the organization that files it.
// Agency and unit are optional hierarchy links; exactly one of company or
// insurance authority identifies the issuer.
type IssuingOrganization struct {
	AgencyID    *uuid.UUID `json:"agency_id,omitempty"`
	UnitID      *uuid.UUID `json:"unit_id,omitempty"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	AuthorityID *uuid.UUID `json:"authority_id,omitempty"`
}

// Validate enforces the single-issuer rule
func (o IssuingOrganization) Validate() error {
	hasCompany := o.CompanyID != nil && *o.CompanyID != uuid.Nil
	hasAuthority := o.AuthorityID != nil && *o.AuthorityID != uuid.Nil
	switch {
	case hasCompany && hasAuthority:
		return shared.NewValidationError(CodeInvalidIssuingOrg, "Only one of company or insurance authority may be set")
	case !hasCompany && !hasAuthority:
		return shared.NewValidationError(CodeInvalidIssuingOrg, "A company or insurance authority is required")
	}
	return nil
}

// Declaration is the aggregate root for a batch submission of insured participants
type Declaration struct {
	shared.BaseAggregateRoot
	Code                string              `json:"code"`
	CaseFileCode        string              `json:"case_file_code,omitempty"`
	Type                string              `json:"type"`
	Name                string              `json:"name"`
	Organization        IssuingOrganization `json:"organization"`
	OwnerID             uuid.UUID           `json:"owner_id"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	Status              Status              `json:"status"`
	PaymentStatus       SettlementStatus    `json:"payment_status"`
	PaymentCompletedAt  *time.Time          `json:"payment_completed_at,omitempty"`
	SubmittedAt         *time.Time          `json:"submitted_at,omitempty"`
	SubmittedBy         *uuid.UUID          `json:"submitted_by,omitempty"`
	ApprovedAt          *time.Time          `json:"approved_at,omitempty"`
	ApprovedBy          *uuid.UUID          `json:"approved_by,omitempty"`
	RejectedAt          *time.Time          `json:"rejected_at,omitempty"`
	RejectedBy          *uuid.UUID          `json:"rejected_by,omitempty"`
	RejectionReason     string              `json:"rejection_reason,omitempty"`
	ProcessingNotes     string              `json:"processing_notes,omitempty"`
	ProcessingStartedAt *time.Time          `json:"processing_started_at,omitempty"`
	StatusChangedAt     *time.Time          `json:"status_changed_at,omitempty"`
	StatusChangedBy     *uuid.UUID          `json:"status_changed_by,omitempty"`
	SourceDeclarationID *uuid.UUID          `json:"source_declaration_id,omitempty"`
	IsDerived           bool                `json:"is_derived"`
}

// NewDeclaration creates a draft declaration with a freshly generated code
func NewDeclaration(code string, ownerID uuid.UUID, declType, name string, org IssuingOrganization) (*Declaration, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewValidationError("INVALID_CODE", "Declaration code cannot be empty")
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_OWNER", "Owner is required")
	}
	if strings.TrimSpace(declType) == "" {
		return nil, shared.NewValidationError("INVALID_TYPE", "Declaration type is required")
	}
	if err := org.Validate(); err != nil {
		return nil, err
	}

	d := &Declaration{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Type:              strings.TrimSpace(declType),
		Name:              strings.TrimSpace(name),
		Organization:      org,
		OwnerID:           ownerID,
		TotalAmount:       decimal.Zero,
		Status:            StatusDraft,
		PaymentStatus:     SettlementUnpaid,
	}
	d.AddDomainEvent(NewDeclarationStatusChangedEvent(d, "", ownerID))
	return d, nil
}

// Derive clones the organizational and business fields into a new draft
// declaration that records this one as its source.
func (d *Declaration) Derive(code string, actor uuid.UUID, name string) (*Declaration, error) {
	if name == "" {
		name = d.Name
	}
	derived, err := NewDeclaration(code, actor, d.Type, name, d.Organization)
	if err != nil {
		return nil, err
	}
	sourceID := d.ID
	derived.SourceDeclarationID = &sourceID
	derived.IsDerived = true
	derived.CaseFileCode = d.CaseFileCode
	return derived, nil
}

// Submit moves a draft into review
func (d *Declaration) Submit(actor uuid.UUID) error {
	previous, err := d.transition(StatusSubmitted, actor)
	if err != nil {
		return err
	}
	now := *d.StatusChangedAt
	d.SubmittedAt = &now
	d.SubmittedBy = &actor
	d.recordStatusChange(previous, actor)
	return nil
}

// ApproveForPayment records the approval and the freshly computed total
func (d *Declaration) ApproveForPayment(actor uuid.UUID, total decimal.Decimal) error {
	if !d.Status.IsReviewable() {
		return shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Cannot approve declaration in %s status", d.Status))
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError(CodeInvalidAmount, "Declaration total must be positive to create a payment")
	}
	previous, err := d.transition(StatusPendingPayment, actor)
	if err != nil {
		return err
	}
	now := *d.StatusChangedAt
	d.TotalAmount = total
	d.ApprovedAt = &now
	d.ApprovedBy = &actor
	d.PaymentStatus = SettlementPending
	d.recordStatusChange(previous, actor)
	return nil
}

// RevertApproval undoes ApproveForPayment when the payment could not be recorded
func (d *Declaration) RevertApproval(previous Status, actor uuid.UUID) {
	d.Status = previous
	d.ApprovedAt = nil
	d.ApprovedBy = nil
	d.PaymentStatus = SettlementUnpaid
	now := time.Now()
	d.StatusChangedAt = &now
	d.StatusChangedBy = &actor
	d.UpdatedAt = now
	d.IncrementVersion()
	d.ClearDomainEvents()
}

// RefreshTotal replaces the total while waiting for a reissued payment
func (d *Declaration) RefreshTotal(total decimal.Decimal) error {
	if d.Status != StatusPendingPayment {
		return shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Cannot reissue payment for declaration in %s status", d.Status))
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError(CodeInvalidAmount, "Declaration total must be positive to create a payment")
	}
	d.TotalAmount = total
	d.PaymentStatus = SettlementPending
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// ReleasePayment marks the pending payment as gone; the declaration keeps
// waiting in pending_payment for a reissued one.
func (d *Declaration) ReleasePayment() error {
	if d.Status != StatusPendingPayment {
		return shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Declaration in %s status has no pending payment", d.Status))
	}
	d.PaymentStatus = SettlementUnpaid
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// Reject terminates the declaration from any non-terminal state
func (d *Declaration) Reject(actor uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError(CodeReasonRequired, "Rejection reason is required")
	}
	previous, err := d.transition(StatusRejected, actor)
	if err != nil {
		return err
	}
	now := *d.StatusChangedAt
	d.RejectedAt = &now
	d.RejectedBy = &actor
	d.RejectionReason = reason
	d.recordStatusChange(previous, actor)
	return nil
}

// StartProcessing marks that staff began working on the declaration
func (d *Declaration) StartProcessing(actor uuid.UUID, notes string) error {
	if !d.Status.CanStartProcessing() {
		return shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Cannot start processing declaration in %s status", d.Status))
	}
	previous, err := d.transition(StatusProcessing, actor)
	if err != nil {
		return err
	}
	now := *d.StatusChangedAt
	d.ProcessingStartedAt = &now
	if notes = strings.TrimSpace(notes); notes != "" {
		d.ProcessingNotes = notes
	}
	d.recordStatusChange(previous, actor)
	return nil
}

// ConfirmPayment is the only way out of pending_payment into processing
func (d *Declaration) ConfirmPayment(actor uuid.UUID, completedAt time.Time) error {
	if d.Status != StatusPendingPayment {
		return shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Cannot confirm payment for declaration in %s status", d.Status))
	}
	previous, err := d.transition(StatusProcessing, actor)
	if err != nil {
		return err
	}
	d.PaymentStatus = SettlementCompleted
	d.PaymentCompletedAt = &completedAt
	d.recordStatusChange(previous, actor)
	return nil
}

// RevertPaymentConfirmation puts a confirmed declaration back into pending_payment
// when the payment it was confirmed against could not be settled.
func (d *Declaration) RevertPaymentConfirmation(actor uuid.UUID) {
	d.Status = StatusPendingPayment
	d.PaymentStatus = SettlementPending
	d.PaymentCompletedAt = nil
	now := time.Now()
	d.StatusChangedAt = &now
	d.StatusChangedBy = &actor
	d.UpdatedAt = now
	d.IncrementVersion()
	d.ClearDomainEvents()
}

// MarkPaid records that the authority acknowledged the contribution
func (d *Declaration) MarkPaid(actor uuid.UUID) error {
	if d.Status != StatusProcessing {
		return invalidTransition(d.Status, StatusPaid)
	}
	return d.simpleTransition(StatusPaid, actor)
}

// FinalizeApproval marks the declaration approved by the insurance authority
func (d *Declaration) FinalizeApproval(actor uuid.UUID) error {
	if d.Status != StatusProcessing && d.Status != StatusPaid {
		return invalidTransition(d.Status, StatusApproved)
	}
	return d.simpleTransition(StatusApproved, actor)
}

// SendRequest records a follow-up request to the insurance authority
func (d *Declaration) SendRequest(actor uuid.UUID, notes string) error {
	previous, err := d.transition(StatusRequestSent, actor)
	if err != nil {
		return err
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		d.ProcessingNotes = notes
	}
	d.recordStatusChange(previous, actor)
	return nil
}

// ConfirmRequest records the authority's answer to a follow-up request
func (d *Declaration) ConfirmRequest(actor uuid.UUID) error {
	return d.simpleTransition(StatusRequestConfirmed, actor)
}

// Complete closes the declaration
func (d *Declaration) Complete(actor uuid.UUID) error {
	return d.simpleTransition(StatusCompleted, actor)
}

// AssignCaseFileCode sets the staff-assigned case file code
func (d *Declaration) AssignCaseFileCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return shared.NewValidationError("INVALID_CASE_FILE_CODE", "Case file code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewValidationError("INVALID_CASE_FILE_CODE", "Case file code cannot exceed 50 characters")
	}
	d.CaseFileCode = code
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// IsEditable returns true if participants may still be added, changed or removed
func (d *Declaration) IsEditable() bool {
	return d.Status == StatusDraft
}

// ParticipantMirror returns the participant sub-state implied by the
// declaration's current state. It is what a fan-out would have written.
func (d *Declaration) ParticipantMirror() (ParticipantStatus, SettlementStatus) {
	settlement := d.PaymentStatus
	if settlement == "" {
		settlement = SettlementUnpaid
	}
	if d.Status == StatusProcessing && d.PaymentCompletedAt != nil &&
		(d.ProcessingStartedAt == nil || !d.ProcessingStartedAt.After(*d.PaymentCompletedAt)) {
		return ParticipantSubmitted, settlement
	}
	return ParticipantStatusFor(d.Status), settlement
}

// Snapshot returns a copy of the declaration without pending events
func (d *Declaration) Snapshot() Declaration {
	snap := *d
	snap.ClearDomainEvents()
	return snap
}

func (d *Declaration) simpleTransition(next Status, actor uuid.UUID) error {
	previous, err := d.transition(next, actor)
	if err != nil {
		return err
	}
	d.recordStatusChange(previous, actor)
	return nil
}

// transition validates and applies the status change; callers record the
// event once every field touched by the operation is set.
func (d *Declaration) transition(next Status, actor uuid.UUID) (Status, error) {
	if d.Status.IsTerminal() {
		return d.Status, shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Declaration is already %s", d.Status))
	}
	if !d.Status.CanTransitionTo(next) {
		return d.Status, invalidTransition(d.Status, next)
	}
	previous := d.Status
	now := time.Now()
	d.Status = next
	d.StatusChangedAt = &now
	d.StatusChangedBy = &actor
	d.UpdatedAt = now
	d.IncrementVersion()
	return previous, nil
}

func (d *Declaration) recordStatusChange(previous Status, actor uuid.UUID) {
	d.AddDomainEvent(NewDeclarationStatusChangedEvent(d, previous, actor))
}
