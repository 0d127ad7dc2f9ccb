package declaration

// Status is the lifecycle state of a declaration (ke khai)
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusProcessing       Status = "processing"
	StatusPendingPayment   Status = "pending_payment"
	StatusPaid             Status = "paid"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusRequestSent      Status = "request_sent"
	StatusRequestConfirmed Status = "request_confirmed"
	StatusCompleted        Status = "completed"
)

// transitions lists every allowed target per source state.
// pending_payment -> processing is only taken by payment confirmation.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusSubmitted, StatusRejected},
	StatusSubmitted:        {StatusProcessing, StatusPendingPayment, StatusRejected},
	StatusProcessing:       {StatusProcessing, StatusPendingPayment, StatusPaid, StatusApproved, StatusRequestSent, StatusRejected},
	StatusPendingPayment:   {StatusProcessing, StatusRejected},
	StatusPaid:             {StatusProcessing, StatusApproved, StatusRejected},
	StatusApproved:         {StatusProcessing, StatusRequestSent, StatusCompleted, StatusRejected},
	StatusRequestSent:      {StatusProcessing, StatusRequestConfirmed, StatusRejected},
	StatusRequestConfirmed: {StatusProcessing, StatusCompleted, StatusRejected},
}

// AllStatuses returns every declaration status in lifecycle order
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusSubmitted, StatusProcessing, StatusPendingPayment, StatusPaid,
		StatusApproved, StatusRejected, StatusRequestSent, StatusRequestConfirmed, StatusCompleted,
	}
}

// IsValid checks if the status is a known declaration status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusProcessing, StatusPendingPayment, StatusPaid,
		StatusApproved, StatusRejected, StatusRequestSent, StatusRequestConfirmed, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// IsReviewable returns true if staff may approve or reject in this status
func (s Status) IsReviewable() bool {
	return s == StatusSubmitted || s == StatusProcessing
}

// CanStartProcessing returns true if staff may (re)enter processing from this status
func (s Status) CanStartProcessing() bool {
	switch s {
	case StatusSubmitted, StatusProcessing, StatusPaid, StatusApproved, StatusRequestSent, StatusRequestConfirmed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParticipantStatus is the participant-level mirror of the declaration lifecycle
type ParticipantStatus string

const (
	ParticipantDraft            ParticipantStatus = "draft"
	ParticipantSubmitted        ParticipantStatus = "submitted"
	ParticipantProcessing       ParticipantStatus = "processing"
	ParticipantPendingPayment   ParticipantStatus = "pending_payment"
	ParticipantPaid             ParticipantStatus = "paid"
	ParticipantApproved         ParticipantStatus = "approved"
	ParticipantRejected         ParticipantStatus = "rejected"
	ParticipantRequestSent      ParticipantStatus = "request_sent"
	ParticipantRequestConfirmed ParticipantStatus = "request_confirmed"
	ParticipantCompleted        ParticipantStatus = "completed"
)

// IsValid checks if the participant status is known
func (s ParticipantStatus) IsValid() bool {
	return Status(s).IsValid()
}

// ParticipantStatusFor maps a declaration status onto the participant mirror value
func ParticipantStatusFor(s Status) ParticipantStatus {
	return ParticipantStatus(s)
}

// SettlementStatus tracks payment progress on declarations and participants
type SettlementStatus string

const (
	SettlementUnpaid    SettlementStatus = "unpaid"
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
)

// IsValid checks if the settlement status is known
func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementUnpaid, SettlementPending, SettlementCompleted:
		return true
	}
	return false
}
