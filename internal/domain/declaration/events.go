package declaration

import (
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names consumed by notification subscribers
const (
	EventTypeDeclarationStatusChanged = "DeclarationStatusChanged"
	EventTypePaymentConfirmed         = "PaymentConfirmed"

	AggregateTypeDeclaration = "Declaration"
	AggregateTypePayment     = "Payment"
)

// DeclarationStatusChangedEvent is raised after every committed status transition,
// including creation (empty old status).
type DeclarationStatusChangedEvent struct {
	shared.BaseDomainEvent
	DeclarationID uuid.UUID   `json:"declaration_id"`
	OldStatus     Status      `json:"old_status"`
	NewStatus     Status      `json:"new_status"`
	ChangedBy     uuid.UUID   `json:"changed_by"`
	Declaration   Declaration `json:"declaration"`
}

// EventType returns the event type name
func (e *DeclarationStatusChangedEvent) EventType() string {
	return EventTypeDeclarationStatusChanged
}

// NewDeclarationStatusChangedEvent creates a new DeclarationStatusChangedEvent
func NewDeclarationStatusChangedEvent(d *Declaration, old Status, actor uuid.UUID) *DeclarationStatusChangedEvent {
	return &DeclarationStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeclarationStatusChanged, AggregateTypeDeclaration, d.ID),
		DeclarationID:   d.ID,
		OldStatus:       old,
		NewStatus:       d.Status,
		ChangedBy:       actor,
		Declaration:     d.Snapshot(),
	}
}

// PaymentConfirmedEvent is raised once a pending payment has been completed
// and the declaration moved back into processing.
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	DeclarationID uuid.UUID       `json:"declaration_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	PaymentCode   string          `json:"payment_code"`
	Amount        decimal.Decimal `json:"amount"`
	ConfirmedBy   uuid.UUID       `json:"confirmed_by"`
	ConfirmedAt   time.Time       `json:"confirmed_at"`
	Declaration   Declaration     `json:"declaration"`
}

// EventType returns the event type name
func (e *PaymentConfirmedEvent) EventType() string {
	return EventTypePaymentConfirmed
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(p *Payment, d *Declaration) *PaymentConfirmedEvent {
	var confirmedBy uuid.UUID
	confirmedAt := time.Now()
	if p.ConfirmedBy != nil {
		confirmedBy = *p.ConfirmedBy
	}
	if p.CompletedAt != nil {
		confirmedAt = *p.CompletedAt
	}
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, AggregateTypePayment, p.ID),
		DeclarationID:   d.ID,
		PaymentID:       p.ID,
		PaymentCode:     p.Code,
		Amount:          p.Amount,
		ConfirmedBy:     confirmedBy,
		ConfirmedAt:     confirmedAt,
		Declaration:     d.Snapshot(),
	}
}
