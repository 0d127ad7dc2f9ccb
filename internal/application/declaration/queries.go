package declaration

import (
	"context"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
)

// ListQuery narrows a declaration listing
type ListQuery struct {
	shared.Filter
	Statuses []declaration.Status
	Type     string
}

// read operation names used in wrapped store errors
const (
	opGetDeclaration   = "get_declaration"
	opListDeclarations = "list_declarations"
	opListParticipants = "list_participants"
	opGetPayment       = "get_payment"
	opPaymentHistory   = "payment_history"
)

// reviewStatuses is the staff work queue: everything past draft that is not terminal
var reviewStatuses = []declaration.Status{
	declaration.StatusSubmitted,
	declaration.StatusProcessing,
	declaration.StatusPendingPayment,
	declaration.StatusPaid,
	declaration.StatusApproved,
	declaration.StatusRequestSent,
	declaration.StatusRequestConfirmed,
}

// GetDeclaration returns a declaration by id
func (e *Engine) GetDeclaration(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	d, err := e.declarations.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError(opGetDeclaration, err)
	}
	return d, nil
}

// ListByOwner lists the declarations created by the actor
func (e *Engine) ListByOwner(ctx context.Context, actor Actor, query ListQuery) (*shared.Paginated[declaration.Declaration], error) {
	owner := actor.UserID
	return e.list(ctx, declaration.DeclarationFilter{
		Filter:   query.Filter,
		OwnerID:  &owner,
		Statuses: query.Statuses,
		Type:     query.Type,
	})
}

// ListForReview lists declarations awaiting staff work. Admins see every owner,
// other actors only their own.
func (e *Engine) ListForReview(ctx context.Context, actor Actor, query ListQuery) (*shared.Paginated[declaration.Declaration], error) {
	filter := declaration.DeclarationFilter{
		Filter:   query.Filter,
		Statuses: query.Statuses,
		Type:     query.Type,
	}
	if len(filter.Statuses) == 0 {
		filter.Statuses = reviewStatuses
	}
	if !actor.IsAdmin {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return e.list(ctx, filter)
}

func (e *Engine) list(ctx context.Context, filter declaration.DeclarationFilter) (*shared.Paginated[declaration.Declaration], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	items, total, err := e.declarations.List(ctx, filter)
	if err != nil {
		return nil, wrapStoreError(opListDeclarations, err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListParticipants returns the participants of a declaration ordered by stt
func (e *Engine) ListParticipants(ctx context.Context, declarationID uuid.UUID) ([]declaration.Participant, error) {
	if _, err := e.declarations.FindByID(ctx, declarationID); err != nil {
		return nil, wrapStoreError(opListParticipants, err)
	}
	participants, err := e.participants.ListByDeclaration(ctx, declarationID)
	if err != nil {
		return nil, wrapStoreError(opListParticipants, err)
	}
	return participants, nil
}

// GetPayment returns a payment by id
func (e *Engine) GetPayment(ctx context.Context, paymentID uuid.UUID) (*declaration.Payment, error) {
	payment, err := e.ledger.Get(ctx, paymentID)
	if err != nil {
		return nil, wrapStoreError(opGetPayment, err)
	}
	return payment, nil
}

// GetPaymentByDeclaration returns the latest payment of a declaration
func (e *Engine) GetPaymentByDeclaration(ctx context.Context, declarationID uuid.UUID) (*declaration.Payment, error) {
	payment, err := e.ledger.LatestForDeclaration(ctx, declarationID)
	if err != nil {
		return nil, wrapStoreError(opGetPayment, err)
	}
	return payment, nil
}

// PaymentHistory returns every payment of a declaration, newest first
func (e *Engine) PaymentHistory(ctx context.Context, declarationID uuid.UUID) ([]declaration.Payment, error) {
	payments, err := e.ledger.History(ctx, declarationID)
	if err != nil {
		return nil, wrapStoreError(opPaymentHistory, err)
	}
	return payments, nil
}
