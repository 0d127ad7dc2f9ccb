package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type participantFixture struct {
	db           *Database
	declarations *GormDeclarationRepository
	participants *GormParticipantRepository
	payments     *GormPaymentRepository
}

func newParticipantFixture(t *testing.T) participantFixture {
	db := newTestDatabase(t)
	return participantFixture{
		db:           db,
		declarations: NewGormDeclarationRepository(db.DB),
		participants: NewGormParticipantRepository(db.DB),
		payments:     NewGormPaymentRepository(db.DB),
	}
}

func TestGormParticipantRepository_CRUD(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())

	p := seedParticipant(t, f.participants, d.ID, 1, "Nguyen Van A")

	found, err := f.participants.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", found.FullName)
	assert.True(t, decimal.NewFromInt(315900).Equal(found.Amount))
	assert.Equal(t, declaration.ParticipantDraft, found.Status)

	actual := decimal.NewFromInt(300000)
	found.ActualAmount = &actual
	found.Phone = "0901234567"
	require.NoError(t, f.participants.Update(ctx, found))

	updated, err := f.participants.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "0901234567", updated.Phone)
	require.NotNil(t, updated.ActualAmount)
	assert.True(t, actual.Equal(*updated.ActualAmount))

	require.NoError(t, f.participants.Delete(ctx, p.ID))
	_, err = f.participants.FindByID(ctx, p.ID)
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(f.participants.Delete(ctx, p.ID)))
	assert.True(t, shared.IsNotFound(f.participants.Update(ctx, p)))
}

func TestGormParticipantRepository_CreateRequiresDeclaration(t *testing.T) {
	f := newParticipantFixture(t)

	p, err := declaration.NewParticipant(uuid.New(), 1, declaration.ParticipantInput{FullName: "Tran Thi B"})
	require.NoError(t, err)

	err = f.participants.Create(context.Background(), p)
	assert.True(t, shared.IsNotFound(err))
}

func TestGormParticipantRepository_ListAndMaxStt(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())

	maxStt, err := f.participants.MaxStt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, maxStt)

	seedParticipant(t, f.participants, d.ID, 3, "C")
	seedParticipant(t, f.participants, d.ID, 1, "A")
	seedParticipant(t, f.participants, d.ID, 2, "B")

	list, err := f.participants.ListByDeclaration(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{list[0].FullName, list[1].FullName, list[2].FullName})

	maxStt, err = f.participants.MaxStt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, maxStt)
}

func TestGormParticipantRepository_BulkUpdateStatus(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())
	other := seedDeclaration(t, f.declarations, uuid.New())
	seedParticipant(t, f.participants, d.ID, 1, "A")
	seedParticipant(t, f.participants, d.ID, 2, "B")
	untouched := seedParticipant(t, f.participants, other.ID, 1, "Z")

	actor := uuid.New()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	pending := declaration.SettlementPending
	paymentID := uuid.New()
	caseFile := "HS-01"

	n, err := f.participants.BulkUpdateStatus(ctx, d.ID, declaration.BulkStatusUpdate{
		Status:        declaration.ParticipantPendingPayment,
		Actor:         actor,
		Note:          "approved",
		At:            at,
		PaymentStatus: &pending,
		PaymentID:     &paymentID,
		CaseFileCode:  &caseFile,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := f.participants.ListByDeclaration(ctx, d.ID)
	require.NoError(t, err)
	for _, p := range list {
		assert.Equal(t, declaration.ParticipantPendingPayment, p.Status)
		assert.Equal(t, declaration.SettlementPending, p.PaymentStatus)
		require.NotNil(t, p.PaymentID)
		assert.Equal(t, paymentID, *p.PaymentID)
		require.NotNil(t, p.StatusUpdatedBy)
		assert.Equal(t, actor, *p.StatusUpdatedBy)
		assert.Equal(t, "approved", p.StatusNote)
		assert.Equal(t, "HS-01", p.CaseFileCode)
		assert.Nil(t, p.SubmittedAt)
	}

	z, err := f.participants.FindByID(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, declaration.ParticipantDraft, z.Status)

	n, err = f.participants.BulkUpdateStatus(ctx, uuid.New(), declaration.BulkStatusUpdate{
		Status: declaration.ParticipantRejected, Actor: actor, At: at,
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormParticipantRepository_BulkUpdateStatus_Idempotent(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())
	seedParticipant(t, f.participants, d.ID, 1, "A")
	seedParticipant(t, f.participants, d.ID, 2, "B")

	pending := declaration.SettlementPending
	paymentID := uuid.New()
	update := declaration.BulkStatusUpdate{
		Status:        declaration.ParticipantPendingPayment,
		Actor:         uuid.New(),
		Note:          "approved",
		At:            time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		PaymentStatus: &pending,
		PaymentID:     &paymentID,
	}
	_, err := f.participants.BulkUpdateStatus(ctx, d.ID, update)
	require.NoError(t, err)
	first, err := f.participants.ListByDeclaration(ctx, d.ID)
	require.NoError(t, err)

	update.Actor = uuid.New()
	update.At = update.At.Add(time.Hour)
	n, err := f.participants.BulkUpdateStatus(ctx, d.ID, update)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	second, err := f.participants.ListByDeclaration(ctx, d.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range second {
		require.NotNil(t, second[i].StatusUpdatedBy)
		assert.Equal(t, update.Actor, *second[i].StatusUpdatedBy)
		require.NotNil(t, second[i].StatusUpdatedAt)
		assert.True(t, update.At.Equal(*second[i].StatusUpdatedAt))

		// only the audit stamp may move on a repeated update
		before, after := first[i], second[i]
		before.UpdatedAt, before.StatusUpdatedAt, before.StatusUpdatedBy = time.Time{}, nil, nil
		after.UpdatedAt, after.StatusUpdatedAt, after.StatusUpdatedBy = time.Time{}, nil, nil
		assert.Equal(t, before, after)
	}
}

func TestGormParticipantRepository_PaymentSettlement(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())
	payment := seedPayment(t, f.payments, d.ID)
	seedParticipant(t, f.participants, d.ID, 1, "A")
	seedParticipant(t, f.participants, d.ID, 2, "B")

	actor := uuid.New()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	pending := declaration.SettlementPending
	_, err := f.participants.BulkUpdateStatus(ctx, d.ID, declaration.BulkStatusUpdate{
		Status: declaration.ParticipantPendingPayment, Actor: actor, At: at,
		PaymentStatus: &pending, PaymentID: &payment.ID,
	})
	require.NoError(t, err)

	t.Run("mark completed settles every linked participant", func(t *testing.T) {
		n, err := f.participants.MarkPaymentCompleted(ctx, payment.ID, declaration.SubmissionStamp{Actor: actor, At: at})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		list, err := f.participants.ListByDeclaration(ctx, d.ID)
		require.NoError(t, err)
		for _, p := range list {
			assert.Equal(t, declaration.ParticipantSubmitted, p.Status)
			assert.Equal(t, declaration.SettlementCompleted, p.PaymentStatus)
			require.NotNil(t, p.PaidAt)
			assert.True(t, at.Equal(*p.PaidAt))
			require.NotNil(t, p.SubmittedBy)
			assert.Equal(t, actor, *p.SubmittedBy)
		}
	})

	t.Run("unlink clears the reference", func(t *testing.T) {
		n, err := f.participants.UnlinkPayment(ctx, payment.ID, actor, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		list, err := f.participants.ListByDeclaration(ctx, d.ID)
		require.NoError(t, err)
		for _, p := range list {
			assert.Nil(t, p.PaymentID)
			assert.Nil(t, p.PaidAt)
			assert.Equal(t, declaration.SettlementUnpaid, p.PaymentStatus)
			assert.Equal(t, declaration.ParticipantSubmitted, p.Status)
		}

		n, err = f.participants.UnlinkPayment(ctx, payment.ID, actor, at)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGormParticipantRepository_MoveToDeclaration(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	at := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	t.Run("moves and renumbers after the target", func(t *testing.T) {
		f := newParticipantFixture(t)
		source := seedDeclaration(t, f.declarations, uuid.New())
		target := seedDeclaration(t, f.declarations, uuid.New())
		a := seedParticipant(t, f.participants, source.ID, 1, "A")
		b := seedParticipant(t, f.participants, source.ID, 2, "B")
		seedParticipant(t, f.participants, source.ID, 3, "C")
		seedParticipant(t, f.participants, target.ID, 1, "T")

		n, err := f.participants.MoveToDeclaration(ctx, []uuid.UUID{a.ID, b.ID, a.ID}, source.ID, target.ID, actor, at)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		moved, err := f.participants.ListByDeclaration(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, moved, 3)
		assert.Equal(t, "T", moved[0].FullName)
		assert.Equal(t, 2, moved[1].Stt)
		assert.Equal(t, 3, moved[2].Stt)
		for _, p := range moved[1:] {
			assert.Equal(t, declaration.ParticipantDraft, p.Status)
			assert.Equal(t, declaration.SettlementUnpaid, p.PaymentStatus)
			assert.Nil(t, p.PaymentID)
			require.NotNil(t, p.StatusUpdatedBy)
			assert.Equal(t, actor, *p.StatusUpdatedBy)
		}

		left, err := f.participants.ListByDeclaration(ctx, source.ID)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "C", left[0].FullName)
	})

	t.Run("rejects ids outside the source and moves nothing", func(t *testing.T) {
		f := newParticipantFixture(t)
		source := seedDeclaration(t, f.declarations, uuid.New())
		target := seedDeclaration(t, f.declarations, uuid.New())
		a := seedParticipant(t, f.participants, source.ID, 1, "A")
		foreign := seedParticipant(t, f.participants, target.ID, 1, "T")

		_, err := f.participants.MoveToDeclaration(ctx, []uuid.UUID{a.ID, foreign.ID}, source.ID, target.ID, actor, at)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), foreign.ID.String())

		stillThere, err := f.participants.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, source.ID, stillThere.DeclarationID)
	})
}

func TestGormParticipantRepository_ListPage(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	mine := seedDeclaration(t, f.declarations, owner)
	theirs := seedDeclaration(t, f.declarations, uuid.New())
	for i := 1; i <= 5; i++ {
		seedParticipant(t, f.participants, mine.ID, i, "mine")
	}
	seedParticipant(t, f.participants, theirs.ID, 1, "theirs")

	var seen []uuid.UUID
	var after *uuid.UUID
	for {
		page, err := f.participants.ListPage(ctx, declaration.ParticipantPageQuery{OwnerID: &owner, AfterID: after, Limit: 2})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			assert.Equal(t, "mine", p.FullName)
			seen = append(seen, p.ID)
		}
		last := page[len(page)-1].ID
		after = &last
	}
	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1].String(), seen[i].String())
	}

	all, err := f.participants.ListPage(ctx, declaration.ParticipantPageQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestGormParticipantRepository_DeleteByDeclaration(t *testing.T) {
	f := newParticipantFixture(t)
	ctx := context.Background()
	d := seedDeclaration(t, f.declarations, uuid.New())
	seedParticipant(t, f.participants, d.ID, 1, "A")
	seedParticipant(t, f.participants, d.ID, 2, "B")

	n, err := f.participants.DeleteByDeclaration(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := f.participants.ListByDeclaration(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBulkColumns(t *testing.T) {
	at := time.Now()
	actor := uuid.New()

	cols := bulkColumns(declaration.BulkStatusUpdate{Actor: actor, At: at, ClearPayment: true})
	assert.Equal(t, map[string]any{"updated_at": at, "payment_id": nil, "paid_at": nil}, cols)

	cols = bulkColumns(declaration.BulkStatusUpdate{Status: declaration.ParticipantSubmitted, Actor: actor, At: at, MarkSubmitted: true})
	assert.Equal(t, "submitted", cols["status"])
	assert.Equal(t, actor, cols["submitted_by"])
	assert.Equal(t, at, cols["status_updated_at"])
	assert.NotContains(t, cols, "payment_status")
}
