package declaration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ParticipantInput carries the staff-editable fields of a participant
type ParticipantInput struct {
	FullName         string
	BirthDate        string
	Sex              string
	NationalID       string
	Phone            string
	InsuranceCode    *string
	CardNumber       string
	FacilityCode     string
	ContributionBase decimal.Decimal
	ContributionRate decimal.Decimal
	Months           int
	Amount           decimal.Decimal
	ActualAmount     *decimal.Decimal
}

// Participant is an insured person attached to exactly one declaration
type Participant struct {
	shared.BaseEntity
	DeclarationID    uuid.UUID         `json:"declaration_id"`
	Stt              int               `json:"stt"`
	FullName         string            `json:"full_name"`
	BirthDate        string            `json:"birth_date,omitempty"`
	Sex              string            `json:"sex,omitempty"`
	NationalID       string            `json:"national_id,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	InsuranceCode    *string           `json:"insurance_code,omitempty"`
	CardNumber       string            `json:"card_number,omitempty"`
	FacilityCode     string            `json:"facility_code,omitempty"`
	ContributionBase decimal.Decimal   `json:"contribution_base"`
	ContributionRate decimal.Decimal   `json:"contribution_rate"`
	Months           int               `json:"months"`
	Amount           decimal.Decimal   `json:"amount"`
	ActualAmount     *decimal.Decimal  `json:"actual_amount,omitempty"`
	Status           ParticipantStatus `json:"status"`
	PaymentID        *uuid.UUID        `json:"payment_id,omitempty"`
	PaymentStatus    SettlementStatus  `json:"payment_status"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	SubmittedBy      *uuid.UUID        `json:"submitted_by,omitempty"`
	StatusUpdatedAt  *time.Time        `json:"status_updated_at,omitempty"`
	StatusUpdatedBy  *uuid.UUID        `json:"status_updated_by,omitempty"`
	StatusNote       string            `json:"status_note,omitempty"`
	CaseFileCode     string            `json:"case_file_code,omitempty"`
}

// NewParticipant creates a draft participant under the given declaration
func NewParticipant(declarationID uuid.UUID, stt int, input ParticipantInput) (*Participant, error) {
	if declarationID == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidParticipant, "Declaration ID cannot be empty")
	}
	if stt <= 0 {
		return nil, shared.NewValidationError(CodeInvalidParticipant, "Sequence number must be positive")
	}
	p := &Participant{
		BaseEntity:    shared.NewBaseEntity(),
		DeclarationID: declarationID,
		Stt:           stt,
		Status:        ParticipantDraft,
		PaymentStatus: SettlementUnpaid,
	}
	if err := p.Apply(input); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply overwrites the editable fields
func (p *Participant) Apply(input ParticipantInput) error {
	if strings.TrimSpace(input.FullName) == "" {
		return shared.NewValidationError(CodeInvalidParticipant, "Full name cannot be empty")
	}
	if input.Amount.IsNegative() {
		return shared.NewValidationError(CodeInvalidAmount, "Amount cannot be negative")
	}
	if input.ActualAmount != nil && input.ActualAmount.IsNegative() {
		return shared.NewValidationError(CodeInvalidAmount, "Actual amount cannot be negative")
	}
	if input.Months < 0 {
		return shared.NewValidationError(CodeInvalidParticipant, "Months cannot be negative")
	}

	p.FullName = strings.TrimSpace(input.FullName)
	p.BirthDate = strings.TrimSpace(input.BirthDate)
	p.Sex = strings.TrimSpace(input.Sex)
	p.NationalID = strings.TrimSpace(input.NationalID)
	p.Phone = strings.TrimSpace(input.Phone)
	p.InsuranceCode = normalizeInsuranceCode(input.InsuranceCode)
	p.CardNumber = strings.TrimSpace(input.CardNumber)
	p.FacilityCode = strings.TrimSpace(input.FacilityCode)
	p.ContributionBase = input.ContributionBase
	p.ContributionRate = input.ContributionRate
	p.Months = input.Months
	p.Amount = input.Amount
	p.ActualAmount = input.ActualAmount
	p.UpdatedAt = time.Now()
	return nil
}

// EffectiveAmount is the actual-paid override if present, otherwise the nominal amount
func (p *Participant) EffectiveAmount() decimal.Decimal {
	if p.ActualAmount != nil {
		return *p.ActualAmount
	}
	return p.Amount
}

// ValidateForSubmission checks the fields required before a declaration leaves draft
func (p *Participant) ValidateForSubmission() error {
	var missing []string
	if strings.TrimSpace(p.FullName) == "" {
		missing = append(missing, "full name")
	}
	if strings.TrimSpace(p.BirthDate) == "" {
		missing = append(missing, "birth date")
	}
	if strings.TrimSpace(p.NationalID) == "" && (p.InsuranceCode == nil || strings.TrimSpace(*p.InsuranceCode) == "") {
		missing = append(missing, "national ID or insurance code")
	}
	if !p.EffectiveAmount().IsPositive() {
		missing = append(missing, "positive amount")
	}
	if len(missing) > 0 {
		return shared.NewValidationError(CodeIncompleteParticipant,
			fmt.Sprintf("Participant #%d is missing %s", p.Stt, strings.Join(missing, ", ")))
	}
	return nil
}

// MoveTo re-points the participant at another declaration and resets its
// submission and payment sub-state.
func (p *Participant) MoveTo(declarationID uuid.UUID, stt int, actor uuid.UUID) {
	now := time.Now()
	p.DeclarationID = declarationID
	p.Stt = stt
	p.Status = ParticipantDraft
	p.PaymentID = nil
	p.PaymentStatus = SettlementUnpaid
	p.PaidAt = nil
	p.SubmittedAt = nil
	p.SubmittedBy = nil
	p.StatusUpdatedAt = &now
	p.StatusUpdatedBy = &actor
	p.StatusNote = ""
	p.UpdatedAt = now
}

// BelongsTo reports whether the participant is attached to the declaration
func (p *Participant) BelongsTo(declarationID uuid.UUID) bool {
	return p.DeclarationID == declarationID
}

func normalizeInsuranceCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
