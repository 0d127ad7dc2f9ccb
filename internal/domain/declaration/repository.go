package declaration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
)

// DeclarationFilter defines filtering options for declaration queries
type DeclarationFilter struct {
	shared.Filter
	OwnerID  *uuid.UUID
	Statuses []Status
	Type     string
}

// DeclarationRepository persists Declaration aggregates
type DeclarationRepository interface {
	// Create inserts a new declaration. Returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, d *Declaration) error
	// FindByID returns a not-found DomainError when the declaration does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Declaration, error)
	// FindByCode finds a declaration by its human-readable code
	FindByCode(ctx context.Context, code string) (*Declaration, error)
	// List returns a page of declarations and the total count
	List(ctx context.Context, filter DeclarationFilter) ([]Declaration, int64, error)
	// UpdateStatus writes the declaration only if the stored status still equals expected.
	// A miss is reported as a STATUS_CONFLICT error carrying the actual status.
	UpdateStatus(ctx context.Context, d *Declaration, expected Status) error
	// SaveWithLock writes non-status fields guarded by the aggregate version
	SaveWithLock(ctx context.Context, d *Declaration) error
	// Delete removes the declaration row
	Delete(ctx context.Context, id uuid.UUID) error
}

// BulkStatusUpdate is the fan-out primitive applied to every participant of a declaration.
// An empty Status leaves the participant status untouched. Re-applying the same
// update only refreshes the audit stamp.
type BulkStatusUpdate struct {
	Status        ParticipantStatus
	Actor         uuid.UUID
	Note          string
	At            time.Time
	PaymentStatus *SettlementStatus
	PaymentID     *uuid.UUID
	ClearPayment  bool
	PaidAt        *time.Time
	MarkSubmitted bool
	CaseFileCode  *string
}

// SubmissionStamp records who settled a payment on behalf of its participants
type SubmissionStamp struct {
	Actor uuid.UUID
	At    time.Time
}

// ParticipantPageQuery is a keyset page over participants, optionally scoped to one owner
type ParticipantPageQuery struct {
	OwnerID *uuid.UUID
	AfterID *uuid.UUID
	Limit   int
}

// ParticipantRepository persists participants and performs bulk propagation
type ParticipantRepository interface {
	Create(ctx context.Context, p *Participant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Participant, error)
	Update(ctx context.Context, p *Participant) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDeclaration returns participants ordered by stt
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]Participant, error)
	// MaxStt returns the highest sequence number in the declaration, 0 when empty
	MaxStt(ctx context.Context, declarationID uuid.UUID) (int, error)
	// BulkUpdateStatus applies the update to all participants of the declaration
	// and returns the number of rows matched.
	BulkUpdateStatus(ctx context.Context, declarationID uuid.UUID, update BulkStatusUpdate) (int64, error)
	// MarkPaymentCompleted settles every participant referencing the payment
	MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, stamp SubmissionStamp) (int64, error)
	// UnlinkPayment clears the payment reference of every participant pointing at it
	UnlinkPayment(ctx context.Context, paymentID uuid.UUID, actor uuid.UUID, at time.Time) (int64, error)
	// MoveToDeclaration re-points the given participants from source to target in one
	// transaction, resetting them to draft and unpaid. Every id must belong to source.
	MoveToDeclaration(ctx context.Context, ids []uuid.UUID, sourceID, targetID, actor uuid.UUID, at time.Time) (int64, error)
	// DeleteByDeclaration removes all participants of the declaration
	DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error)
	// ListPage returns participants ordered by id after AfterID
	ListPage(ctx context.Context, query ParticipantPageQuery) ([]Participant, error)
}

// PaymentRepository is the storage behind the payment ledger
type PaymentRepository interface {
	// Create inserts a new payment. Returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, p *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindLatestByDeclaration returns the most recently created payment of the declaration
	FindLatestByDeclaration(ctx context.Context, declarationID uuid.UUID) (*Payment, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]Payment, error)
	// UpdateStatus writes the payment only if the stored status still equals expected
	UpdateStatus(ctx context.Context, p *Payment, expected PaymentStatus) error
	// DeleteByDeclaration removes every payment of the declaration
	DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error)
}
