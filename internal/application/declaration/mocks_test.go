package declaration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/stretchr/testify/mock"
)

// mockPaymentRepository is a testify mock of declaration.PaymentRepository
type mockPaymentRepository struct {
	mock.Mock
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *declaration.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*declaration.Payment), args.Error(1)
}

func (m *mockPaymentRepository) FindLatestByDeclaration(ctx context.Context, declarationID uuid.UUID) (*declaration.Payment, error) {
	args := m.Called(ctx, declarationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*declaration.Payment), args.Error(1)
}

func (m *mockPaymentRepository) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Payment, error) {
	args := m.Called(ctx, declarationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]declaration.Payment), args.Error(1)
}

func (m *mockPaymentRepository) UpdateStatus(ctx context.Context, p *declaration.Payment, expected declaration.PaymentStatus) error {
	args := m.Called(ctx, p, expected)
	return args.Error(0)
}

func (m *mockPaymentRepository) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, declarationID)
	return args.Get(0).(int64), args.Error(1)
}

// mockParticipantRepository is a testify mock of declaration.ParticipantRepository
type mockParticipantRepository struct {
	mock.Mock
}

func (m *mockParticipantRepository) Create(ctx context.Context, p *declaration.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*declaration.Participant), args.Error(1)
}

func (m *mockParticipantRepository) Update(ctx context.Context, p *declaration.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockParticipantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockParticipantRepository) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Participant, error) {
	args := m.Called(ctx, declarationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]declaration.Participant), args.Error(1)
}

func (m *mockParticipantRepository) MaxStt(ctx context.Context, declarationID uuid.UUID) (int, error) {
	args := m.Called(ctx, declarationID)
	return args.Int(0), args.Error(1)
}

func (m *mockParticipantRepository) BulkUpdateStatus(ctx context.Context, declarationID uuid.UUID, u declaration.BulkStatusUpdate) (int64, error) {
	args := m.Called(ctx, declarationID, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockParticipantRepository) MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, stamp declaration.SubmissionStamp) (int64, error) {
	args := m.Called(ctx, paymentID, stamp)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockParticipantRepository) UnlinkPayment(ctx context.Context, paymentID uuid.UUID, actor uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, paymentID, actor, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockParticipantRepository) MoveToDeclaration(ctx context.Context, ids []uuid.UUID, sourceID, targetID, actor uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, ids, sourceID, targetID, actor, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockParticipantRepository) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, declarationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockParticipantRepository) ListPage(ctx context.Context, query declaration.ParticipantPageQuery) ([]declaration.Participant, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]declaration.Participant), args.Error(1)
}
