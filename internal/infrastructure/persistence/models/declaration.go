package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/shopspring/decimal"
)

// DeclarationModel is the persistence model for the Declaration aggregate root
type DeclarationModel struct {
	AggregateModel
	Code                string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_declarations_code"`
	CaseFileCode        string          `gorm:"type:varchar(50)"`
	Type                string          `gorm:"type:varchar(20);not null;index"`
	Name                string          `gorm:"type:varchar(200)"`
	AgencyID            *uuid.UUID      `gorm:"type:uuid"`
	UnitID              *uuid.UUID      `gorm:"type:uuid"`
	CompanyID           *uuid.UUID      `gorm:"type:uuid;check:chk_declarations_single_issuer,(company_id IS NULL) <> (authority_id IS NULL)"`
	AuthorityID         *uuid.UUID      `gorm:"type:uuid"`
	OwnerID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_declarations_owner_status,priority:1"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Status              string          `gorm:"type:varchar(30);not null;index:idx_declarations_owner_status,priority:2"`
	PaymentStatus       string          `gorm:"type:varchar(20);not null;default:'unpaid'"`
	PaymentCompletedAt  *time.Time
	SubmittedAt         *time.Time
	SubmittedBy         *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt          *time.Time
	ApprovedBy          *uuid.UUID `gorm:"type:uuid"`
	RejectedAt          *time.Time
	RejectedBy          *uuid.UUID `gorm:"type:uuid"`
	RejectionReason     string     `gorm:"type:text"`
	ProcessingNotes     string     `gorm:"type:text"`
	ProcessingStartedAt *time.Time
	StatusChangedAt     *time.Time
	StatusChangedBy     *uuid.UUID `gorm:"type:uuid"`
	SourceDeclarationID *uuid.UUID `gorm:"type:uuid;index"`
	IsDerived           bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (DeclarationModel) TableName() string {
	return "declarations"
}

// ToDomain converts the persistence model to a domain Declaration
func (m *DeclarationModel) ToDomain() *declaration.Declaration {
	return &declaration.Declaration{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		CaseFileCode:      m.CaseFileCode,
		Type:              m.Type,
		Name:              m.Name,
		Organization: declaration.IssuingOrganization{
			AgencyID:    m.AgencyID,
			UnitID:      m.UnitID,
			CompanyID:   m.CompanyID,
			AuthorityID: m.AuthorityID,
		},
		OwnerID:             m.OwnerID,
		TotalAmount:         m.TotalAmount,
		Status:              declaration.Status(m.Status),
		PaymentStatus:       declaration.SettlementStatus(m.PaymentStatus),
		PaymentCompletedAt:  m.PaymentCompletedAt,
		SubmittedAt:         m.SubmittedAt,
		SubmittedBy:         m.SubmittedBy,
		ApprovedAt:          m.ApprovedAt,
		ApprovedBy:          m.ApprovedBy,
		RejectedAt:          m.RejectedAt,
		RejectedBy:          m.RejectedBy,
		RejectionReason:     m.RejectionReason,
		ProcessingNotes:     m.ProcessingNotes,
		ProcessingStartedAt: m.ProcessingStartedAt,
		StatusChangedAt:     m.StatusChangedAt,
		StatusChangedBy:     m.StatusChangedBy,
		SourceDeclarationID: m.SourceDeclarationID,
		IsDerived:           m.IsDerived,
	}
}

// FromDomain populates the persistence model from a domain Declaration
func (m *DeclarationModel) FromDomain(d *declaration.Declaration) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Code = d.Code
	m.CaseFileCode = d.CaseFileCode
	m.Type = d.Type
	m.Name = d.Name
	m.AgencyID = d.Organization.AgencyID
	m.UnitID = d.Organization.UnitID
	m.CompanyID = d.Organization.CompanyID
	m.AuthorityID = d.Organization.AuthorityID
	m.OwnerID = d.OwnerID
	m.TotalAmount = d.TotalAmount
	m.Status = string(d.Status)
	m.PaymentStatus = string(d.PaymentStatus)
	m.PaymentCompletedAt = d.PaymentCompletedAt
	m.SubmittedAt = d.SubmittedAt
	m.SubmittedBy = d.SubmittedBy
	m.ApprovedAt = d.ApprovedAt
	m.ApprovedBy = d.ApprovedBy
	m.RejectedAt = d.RejectedAt
	m.RejectedBy = d.RejectedBy
	m.RejectionReason = d.RejectionReason
	m.ProcessingNotes = d.ProcessingNotes
	m.ProcessingStartedAt = d.ProcessingStartedAt
	m.StatusChangedAt = d.StatusChangedAt
	m.StatusChangedBy = d.StatusChangedBy
	m.SourceDeclarationID = d.SourceDeclarationID
	m.IsDerived = d.IsDerived
}

// MutableColumns is the column map written by status and locked updates.
// Code, owner and creation time never change after insert.
func (m *DeclarationModel) MutableColumns() map[string]any {
	return map[string]any{
		"case_file_code":        m.CaseFileCode,
		"name":                  m.Name,
		"agency_id":             m.AgencyID,
		"unit_id":               m.UnitID,
		"company_id":            m.CompanyID,
		"authority_id":          m.AuthorityID,
		"total_amount":          m.TotalAmount,
		"status":                m.Status,
		"payment_status":        m.PaymentStatus,
		"payment_completed_at":  m.PaymentCompletedAt,
		"submitted_at":          m.SubmittedAt,
		"submitted_by":          m.SubmittedBy,
		"approved_at":           m.ApprovedAt,
		"approved_by":           m.ApprovedBy,
		"rejected_at":           m.RejectedAt,
		"rejected_by":           m.RejectedBy,
		"rejection_reason":      m.RejectionReason,
		"processing_notes":      m.ProcessingNotes,
		"processing_started_at": m.ProcessingStartedAt,
		"status_changed_at":     m.StatusChangedAt,
		"status_changed_by":     m.StatusChangedBy,
		"version":               m.Version,
		"updated_at":            m.UpdatedAt,
	}
}

// DeclarationModelFromDomain creates a new persistence model from a domain Declaration
func DeclarationModelFromDomain(d *declaration.Declaration) *DeclarationModel {
	m := &DeclarationModel{}
	m.FromDomain(d)
	return m
}

// ParticipantModel is the persistence model for the Participant entity
type ParticipantModel struct {
	BaseModel
	DeclarationID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_participants_declaration_stt,priority:1"`
	Stt              int              `gorm:"not null;index:idx_participants_declaration_stt,priority:2"`
	FullName         string           `gorm:"type:varchar(200);not null"`
	BirthDate        string           `gorm:"type:varchar(20)"`
	Sex              string           `gorm:"type:varchar(10)"`
	NationalID       string           `gorm:"type:varchar(20);index"`
	Phone            string           `gorm:"type:varchar(20)"`
	InsuranceCode    *string          `gorm:"type:varchar(20);index"`
	CardNumber       string           `gorm:"type:varchar(30)"`
	FacilityCode     string           `gorm:"type:varchar(20)"`
	ContributionBase decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ContributionRate decimal.Decimal  `gorm:"type:decimal(8,4);not null;default:0"`
	Months           int              `gorm:"not null;default:0"`
	Amount           decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ActualAmount     *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Status           string           `gorm:"type:varchar(30);not null"`
	PaymentID        *uuid.UUID       `gorm:"type:uuid;index"`
	PaymentStatus    string           `gorm:"type:varchar(20);not null;default:'unpaid'"`
	PaidAt           *time.Time
	SubmittedAt      *time.Time
	SubmittedBy      *uuid.UUID `gorm:"type:uuid"`
	StatusUpdatedAt  *time.Time
	StatusUpdatedBy  *uuid.UUID `gorm:"type:uuid"`
	StatusNote       string     `gorm:"type:text"`
	CaseFileCode     string     `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (ParticipantModel) TableName() string {
	return "participants"
}

// ToDomain converts the persistence model to a domain Participant
func (m *ParticipantModel) ToDomain() *declaration.Participant {
	return &declaration.Participant{
		BaseEntity:       m.BaseModel.ToDomain(),
		DeclarationID:    m.DeclarationID,
		Stt:              m.Stt,
		FullName:         m.FullName,
		BirthDate:        m.BirthDate,
		Sex:              m.Sex,
		NationalID:       m.NationalID,
		Phone:            m.Phone,
		InsuranceCode:    m.InsuranceCode,
		CardNumber:       m.CardNumber,
		FacilityCode:     m.FacilityCode,
		ContributionBase: m.ContributionBase,
		ContributionRate: m.ContributionRate,
		Months:           m.Months,
		Amount:           m.Amount,
		ActualAmount:     m.ActualAmount,
		Status:           declaration.ParticipantStatus(m.Status),
		PaymentID:        m.PaymentID,
		PaymentStatus:    declaration.SettlementStatus(m.PaymentStatus),
		PaidAt:           m.PaidAt,
		SubmittedAt:      m.SubmittedAt,
		SubmittedBy:      m.SubmittedBy,
		StatusUpdatedAt:  m.StatusUpdatedAt,
		StatusUpdatedBy:  m.StatusUpdatedBy,
		StatusNote:       m.StatusNote,
		CaseFileCode:     m.CaseFileCode,
	}
}

// FromDomain populates the persistence model from a domain Participant
func (m *ParticipantModel) FromDomain(p *declaration.Participant) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.DeclarationID = p.DeclarationID
	m.Stt = p.Stt
	m.FullName = p.FullName
	m.BirthDate = p.BirthDate
	m.Sex = p.Sex
	m.NationalID = p.NationalID
	m.Phone = p.Phone
	m.InsuranceCode = p.InsuranceCode
	m.CardNumber = p.CardNumber
	m.FacilityCode = p.FacilityCode
	m.ContributionBase = p.ContributionBase
	m.ContributionRate = p.ContributionRate
	m.Months = p.Months
	m.Amount = p.Amount
	m.ActualAmount = p.ActualAmount
	m.Status = string(p.Status)
	m.PaymentID = p.PaymentID
	m.PaymentStatus = string(p.PaymentStatus)
	m.PaidAt = p.PaidAt
	m.SubmittedAt = p.SubmittedAt
	m.SubmittedBy = p.SubmittedBy
	m.StatusUpdatedAt = p.StatusUpdatedAt
	m.StatusUpdatedBy = p.StatusUpdatedBy
	m.StatusNote = p.StatusNote
	m.CaseFileCode = p.CaseFileCode
}

// MutableColumns is the column map written by a full participant update
func (m *ParticipantModel) MutableColumns() map[string]any {
	return map[string]any{
		"declaration_id":    m.DeclarationID,
		"stt":               m.Stt,
		"full_name":         m.FullName,
		"birth_date":        m.BirthDate,
		"sex":               m.Sex,
		"national_id":       m.NationalID,
		"phone":             m.Phone,
		"insurance_code":    m.InsuranceCode,
		"card_number":       m.CardNumber,
		"facility_code":     m.FacilityCode,
		"contribution_base": m.ContributionBase,
		"contribution_rate": m.ContributionRate,
		"months":            m.Months,
		"amount":            m.Amount,
		"actual_amount":     m.ActualAmount,
		"status":            m.Status,
		"payment_id":        m.PaymentID,
		"payment_status":    m.PaymentStatus,
		"paid_at":           m.PaidAt,
		"submitted_at":      m.SubmittedAt,
		"submitted_by":      m.SubmittedBy,
		"status_updated_at": m.StatusUpdatedAt,
		"status_updated_by": m.StatusUpdatedBy,
		"status_note":       m.StatusNote,
		"case_file_code":    m.CaseFileCode,
		"updated_at":        m.UpdatedAt,
	}
}

// ParticipantModelFromDomain creates a new persistence model from a domain Participant
func ParticipantModelFromDomain(p *declaration.Participant) *ParticipantModel {
	m := &ParticipantModel{}
	m.FromDomain(p)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root
type PaymentModel struct {
	AggregateModel
	Code             string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_payments_code"`
	DeclarationID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_payments_declaration_created,priority:1"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Method           string          `gorm:"type:varchar(20);not null"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	TransactionID    string          `gorm:"type:varchar(100)"`
	ProofURL         string          `gorm:"type:text"`
	ConfirmationNote string          `gorm:"type:text"`
	CreatedBy        uuid.UUID       `gorm:"type:uuid;not null"`
	ExpiresAt        *time.Time
	CompletedAt      *time.Time
	ConfirmedBy      *uuid.UUID `gorm:"type:uuid"`
	FailureReason    string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *declaration.Payment {
	return &declaration.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		DeclarationID:     m.DeclarationID,
		Amount:            m.Amount,
		Method:            declaration.PaymentMethod(m.Method),
		Status:            declaration.PaymentStatus(m.Status),
		TransactionID:     m.TransactionID,
		ProofURL:          m.ProofURL,
		ConfirmationNote:  m.ConfirmationNote,
		CreatedBy:         m.CreatedBy,
		ExpiresAt:         m.ExpiresAt,
		CompletedAt:       m.CompletedAt,
		ConfirmedBy:       m.ConfirmedBy,
		FailureReason:     m.FailureReason,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *declaration.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Code = p.Code
	m.DeclarationID = p.DeclarationID
	m.Amount = p.Amount
	m.Method = string(p.Method)
	m.Status = string(p.Status)
	m.TransactionID = p.TransactionID
	m.ProofURL = p.ProofURL
	m.ConfirmationNote = p.ConfirmationNote
	m.CreatedBy = p.CreatedBy
	m.ExpiresAt = p.ExpiresAt
	m.CompletedAt = p.CompletedAt
	m.ConfirmedBy = p.ConfirmedBy
	m.FailureReason = p.FailureReason
}

// MutableColumns is the column map written when the payment changes status
func (m *PaymentModel) MutableColumns() map[string]any {
	return map[string]any{
		"status":            m.Status,
		"transaction_id":    m.TransactionID,
		"proof_url":         m.ProofURL,
		"confirmation_note": m.ConfirmationNote,
		"completed_at":      m.CompletedAt,
		"confirmed_by":      m.ConfirmedBy,
		"failure_reason":    m.FailureReason,
		"version":           m.Version,
		"updated_at":        m.UpdatedAt,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *declaration.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
