package dto

import (
	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/shopspring/decimal"
)

// CreateDeclarationRequest is the body of POST /declarations
type CreateDeclarationRequest struct {
	Type        string     `json:"type" binding:"required,max=20"`
	Name        string     `json:"name" binding:"max=255"`
	AgencyID    *uuid.UUID `json:"agency_id"`
	UnitID      *uuid.UUID `json:"unit_id"`
	CompanyID   *uuid.UUID `json:"company_id"`
	AuthorityID *uuid.UUID `json:"authority_id"`
}

// Organization returns the issuing organization carried by the request
func (r CreateDeclarationRequest) Organization() declaration.IssuingOrganization {
	return declaration.IssuingOrganization{
		AgencyID:    r.AgencyID,
		UnitID:      r.UnitID,
		CompanyID:   r.CompanyID,
		AuthorityID: r.AuthorityID,
	}
}

// ParticipantRequest is the body of participant create/update calls
type ParticipantRequest struct {
	FullName         string           `json:"full_name" binding:"required,max=255"`
	BirthDate        string           `json:"birth_date" binding:"max=20"`
	Sex              string           `json:"sex" binding:"max=10"`
	NationalID       string           `json:"national_id" binding:"omitempty,max=20"`
	Phone            string           `json:"phone" binding:"omitempty,max=20"`
	InsuranceCode    *string          `json:"insurance_code" binding:"omitempty,max=20"`
	CardNumber       string           `json:"card_number" binding:"max=50"`
	FacilityCode     string           `json:"facility_code" binding:"max=20"`
	ContributionBase decimal.Decimal  `json:"contribution_base"`
	ContributionRate decimal.Decimal  `json:"contribution_rate"`
	Months           int              `json:"months" binding:"gte=0,lte=120"`
	Amount           decimal.Decimal  `json:"amount"`
	ActualAmount     *decimal.Decimal `json:"actual_amount"`
}

// Input converts the request into the domain participant input
func (r ParticipantRequest) Input() declaration.ParticipantInput {
	return declaration.ParticipantInput{
		FullName:         r.FullName,
		BirthDate:        r.BirthDate,
		Sex:              r.Sex,
		NationalID:       r.NationalID,
		Phone:            r.Phone,
		InsuranceCode:    r.InsuranceCode,
		CardNumber:       r.CardNumber,
		FacilityCode:     r.FacilityCode,
		ContributionBase: r.ContributionBase,
		ContributionRate: r.ContributionRate,
		Months:           r.Months,
		Amount:           r.Amount,
		ActualAmount:     r.ActualAmount,
	}
}

// TransitionBody carries the optional compare-and-swap guard and notes
type TransitionBody struct {
	ExpectedStatus *declaration.Status `json:"expected_status"`
	Notes          string              `json:"notes" binding:"max=2000"`
}

// ApproveBody is the body of POST /declarations/:id/approve
type ApproveBody struct {
	ExpectedStatus *declaration.Status       `json:"expected_status"`
	Method         declaration.PaymentMethod `json:"method" binding:"omitempty,oneof=bank_transfer qr_code cash other"`
}

// RejectBody is the body of POST /declarations/:id/reject
type RejectBody struct {
	ExpectedStatus *declaration.Status `json:"expected_status"`
	Reason         string              `json:"reason" binding:"required,max=2000"`
}

// CaseFileBody is the body of POST /declarations/:id/case-file
type CaseFileBody struct {
	CaseFileCode string `json:"case_file_code" binding:"required,max=50"`
}

// SplitBody is the body of POST /declarations/:id/split
type SplitBody struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
	Name           string      `json:"name" binding:"max=255"`
}

// ReissueBody is the body of POST /declarations/:id/payment/reissue
type ReissueBody struct {
	Method declaration.PaymentMethod `json:"method" binding:"omitempty,oneof=bank_transfer qr_code cash other"`
}

// ConfirmPaymentBody is the body of POST /payments/:id/confirm
type ConfirmPaymentBody struct {
	TransactionID string `json:"transaction_id" binding:"max=100"`
	ProofURL      string `json:"proof_url" binding:"omitempty,url,max=500"`
	Note          string `json:"note" binding:"max=2000"`
}

// ClosePaymentBody is the body of POST /payments/:id/{fail,cancel}
type ClosePaymentBody struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// DeclarationListRequest extends ListRequest with declaration filters
type DeclarationListRequest struct {
	ListRequest
	Status []string `form:"status"`
	Type   string   `form:"type"`
}

// Statuses returns the requested statuses as domain values
func (r DeclarationListRequest) Statuses() []declaration.Status {
	statuses := make([]declaration.Status, 0, len(r.Status))
	for _, s := range r.Status {
		if s != "" {
			statuses = append(statuses, declaration.Status(s))
		}
	}
	return statuses
}

// DuplicateScanQuery is the query of GET /duplicates
type DuplicateScanQuery struct {
	AllOwners bool `form:"all_owners"`
}
