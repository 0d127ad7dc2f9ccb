package declaration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
)

// memStore is an in-memory implementation of the three repositories with
// failure injection hooks. Entities are stored by value so callers never alias.
type memStore struct {
	mu           sync.Mutex
	declarations map[uuid.UUID]declaration.Declaration
	participants map[uuid.UUID]declaration.Participant
	payments     map[uuid.UUID]declaration.Payment
	paymentSeq   map[uuid.UUID]int
	seq          int

	rejectDeclarationCodes int
	rejectPaymentCodes     int
	declarationCreates     int
	paymentCreates         int
	declarationCreateErr   error
	bulkErr                error
	markCompletedErr       error
	moveErr                error
	paymentUpdateErr       error

	// beforeStatusUpdate runs against the stored row ahead of the compare-and-swap
	beforeStatusUpdate func(stored *declaration.Declaration)
}

func newMemStore() *memStore {
	return &memStore{
		declarations: make(map[uuid.UUID]declaration.Declaration),
		participants: make(map[uuid.UUID]declaration.Participant),
		payments:     make(map[uuid.UUID]declaration.Payment),
		paymentSeq:   make(map[uuid.UUID]int),
	}
}

func (s *memStore) Declarations() declaration.DeclarationRepository { return memDeclarations{s} }
func (s *memStore) Participants() declaration.ParticipantRepository { return memParticipants{s} }
func (s *memStore) Payments() declaration.PaymentRepository         { return memPayments{s} }

// Execute runs fn against the store and restores the previous contents when fn fails
func (s *memStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	declarations map[uuid.UUID]declaration.Declaration
	participants map[uuid.UUID]declaration.Participant
	payments     map[uuid.UUID]declaration.Payment
	paymentSeq   map[uuid.UUID]int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		declarations: make(map[uuid.UUID]declaration.Declaration, len(s.declarations)),
		participants: make(map[uuid.UUID]declaration.Participant, len(s.participants)),
		payments:     make(map[uuid.UUID]declaration.Payment, len(s.payments)),
		paymentSeq:   make(map[uuid.UUID]int, len(s.paymentSeq)),
	}
	for k, v := range s.declarations {
		snap.declarations[k] = v
	}
	for k, v := range s.participants {
		snap.participants[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.paymentSeq {
		snap.paymentSeq[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declarations = snap.declarations
	s.participants = snap.participants
	s.payments = snap.payments
	s.paymentSeq = snap.paymentSeq
}

// seed helpers bypass the engine

func (s *memStore) putDeclaration(d *declaration.Declaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := d.Snapshot()
	s.declarations[d.ID] = stored
}

func (s *memStore) putParticipant(p *declaration.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = *p
}

func (s *memStore) declaration(id uuid.UUID) declaration.Declaration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declarations[id]
}

func (s *memStore) participant(id uuid.UUID) declaration.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants[id]
}

func (s *memStore) participantsOf(declarationID uuid.UUID) []declaration.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantsOfLocked(declarationID)
}

func (s *memStore) participantsOfLocked(declarationID uuid.UUID) []declaration.Participant {
	out := make([]declaration.Participant, 0)
	for _, p := range s.participants {
		if p.DeclarationID == declarationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stt < out[j].Stt })
	return out
}

func (s *memStore) paymentsOf(declarationID uuid.UUID) []declaration.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentsOfLocked(declarationID)
}

func (s *memStore) paymentsOfLocked(declarationID uuid.UUID) []declaration.Payment {
	out := make([]declaration.Payment, 0)
	for _, p := range s.payments {
		if p.DeclarationID == declarationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.paymentSeq[out[i].ID] > s.paymentSeq[out[j].ID] })
	return out
}

// declarations

type memDeclarations struct{ s *memStore }

func (r memDeclarations) Create(ctx context.Context, d *declaration.Declaration) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declarationCreates++
	if s.declarationCreateErr != nil {
		return s.declarationCreateErr
	}
	if s.rejectDeclarationCodes > 0 {
		s.rejectDeclarationCodes--
		return declaration.ErrDuplicateCode
	}
	for _, existing := range s.declarations {
		if existing.Code == d.Code {
			return declaration.ErrDuplicateCode
		}
	}
	s.declarations[d.ID] = d.Snapshot()
	return nil
}

func (r memDeclarations) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.declarations[id]
	if !ok {
		return nil, shared.NewNotFoundError("declaration", id)
	}
	return &d, nil
}

func (r memDeclarations) FindByCode(ctx context.Context, code string) (*declaration.Declaration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.declarations {
		if d.Code == code {
			found := d
			return &found, nil
		}
	}
	return nil, shared.NewNotFoundError("declaration", code)
}

func (r memDeclarations) List(ctx context.Context, filter declaration.DeclarationFilter) ([]declaration.Declaration, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := make([]declaration.Declaration, 0)
	for _, d := range r.s.declarations {
		if filter.OwnerID != nil && d.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, d.Status) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func containsStatus(statuses []declaration.Status, status declaration.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r memDeclarations) UpdateStatus(ctx context.Context, d *declaration.Declaration, expected declaration.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.declarations[d.ID]
	if !ok {
		return shared.NewNotFoundError("declaration", d.ID)
	}
	if r.s.beforeStatusUpdate != nil {
		r.s.beforeStatusUpdate(&stored)
		r.s.declarations[d.ID] = stored
	}
	if stored.Status != expected {
		return declaration.NewStatusConflictError(d.ID, expected, stored.Status)
	}
	r.s.declarations[d.ID] = d.Snapshot()
	return nil
}

func (r memDeclarations) SaveWithLock(ctx context.Context, d *declaration.Declaration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.declarations[d.ID]
	if !ok {
		return shared.NewNotFoundError("declaration", d.ID)
	}
	if stored.Version != d.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.declarations[d.ID] = d.Snapshot()
	return nil
}

func (r memDeclarations) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.declarations[id]; !ok {
		return shared.NewNotFoundError("declaration", id)
	}
	delete(r.s.declarations, id)
	return nil
}

// participants

type memParticipants struct{ s *memStore }

func (r memParticipants) Create(ctx context.Context, p *declaration.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.declarations[p.DeclarationID]; !ok {
		return shared.NewNotFoundError("declaration", p.DeclarationID)
	}
	r.s.participants[p.ID] = *p
	return nil
}

func (r memParticipants) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, shared.NewNotFoundError("participant", id)
	}
	return &p, nil
}

func (r memParticipants) Update(ctx context.Context, p *declaration.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[p.ID]; !ok {
		return shared.NewNotFoundError("participant", p.ID)
	}
	r.s.participants[p.ID] = *p
	return nil
}

func (r memParticipants) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[id]; !ok {
		return shared.NewNotFoundError("participant", id)
	}
	delete(r.s.participants, id)
	return nil
}

func (r memParticipants) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.participantsOfLocked(declarationID), nil
}

func (r memParticipants) MaxStt(ctx context.Context, declarationID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maxStt := 0
	for _, p := range r.s.participants {
		if p.DeclarationID == declarationID && p.Stt > maxStt {
			maxStt = p.Stt
		}
	}
	return maxStt, nil
}

func (r memParticipants) BulkUpdateStatus(ctx context.Context, declarationID uuid.UUID, u declaration.BulkStatusUpdate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bulkErr != nil {
		return 0, r.s.bulkErr
	}
	var n int64
	for id, p := range r.s.participants {
		if p.DeclarationID != declarationID {
			continue
		}
		applyBulk(&p, u)
		r.s.participants[id] = p
		n++
	}
	return n, nil
}

func applyBulk(p *declaration.Participant, u declaration.BulkStatusUpdate) {
	at := u.At
	actor := u.Actor
	if u.Status != "" {
		p.Status = u.Status
		p.StatusUpdatedAt = &at
		p.StatusUpdatedBy = &actor
		p.StatusNote = u.Note
	}
	if u.PaymentStatus != nil {
		p.PaymentStatus = *u.PaymentStatus
	}
	if u.ClearPayment {
		p.PaymentID = nil
		p.PaidAt = nil
	}
	if u.PaymentID != nil {
		id := *u.PaymentID
		p.PaymentID = &id
	}
	if u.PaidAt != nil {
		paid := *u.PaidAt
		p.PaidAt = &paid
	}
	if u.MarkSubmitted {
		p.SubmittedAt = &at
		p.SubmittedBy = &actor
	}
	if u.CaseFileCode != nil {
		p.CaseFileCode = *u.CaseFileCode
	}
	p.UpdatedAt = at
}

func (r memParticipants) MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, stamp declaration.SubmissionStamp) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.markCompletedErr != nil {
		return 0, r.s.markCompletedErr
	}
	var n int64
	for id, p := range r.s.participants {
		if p.PaymentID == nil || *p.PaymentID != paymentID {
			continue
		}
		completed := declaration.SettlementCompleted
		applyBulk(&p, declaration.BulkStatusUpdate{
			Status:        declaration.ParticipantSubmitted,
			Actor:         stamp.Actor,
			At:            stamp.At,
			PaymentStatus: &completed,
			PaidAt:        &stamp.At,
			MarkSubmitted: true,
		})
		r.s.participants[id] = p
		n++
	}
	return n, nil
}

func (r memParticipants) UnlinkPayment(ctx context.Context, paymentID uuid.UUID, actor uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bulkErr != nil {
		return 0, r.s.bulkErr
	}
	var n int64
	for id, p := range r.s.participants {
		if p.PaymentID == nil || *p.PaymentID != paymentID {
			continue
		}
		unpaid := declaration.SettlementUnpaid
		applyBulk(&p, declaration.BulkStatusUpdate{Actor: actor, At: at, PaymentStatus: &unpaid, ClearPayment: true})
		r.s.participants[id] = p
		n++
	}
	return n, nil
}

func (r memParticipants) MoveToDeclaration(ctx context.Context, ids []uuid.UUID, sourceID, targetID, actor uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.moveErr != nil {
		return 0, r.s.moveErr
	}
	for _, id := range ids {
		p, ok := r.s.participants[id]
		if !ok || p.DeclarationID != sourceID {
			return 0, shared.NewValidationError(declaration.CodeParticipantNotInSource,
				fmt.Sprintf("Participant %s does not belong to declaration %s", id, sourceID))
		}
	}
	next := len(r.s.participantsOfLocked(targetID))
	for _, id := range ids {
		p := r.s.participants[id]
		next++
		p.MoveTo(targetID, next, actor)
		r.s.participants[id] = p
	}
	return int64(len(ids)), nil
}

func (r memParticipants) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.participants {
		if p.DeclarationID == declarationID {
			delete(r.s.participants, id)
			n++
		}
	}
	return n, nil
}

func (r memParticipants) ListPage(ctx context.Context, query declaration.ParticipantPageQuery) ([]declaration.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]declaration.Participant, 0)
	for _, p := range r.s.participants {
		if query.OwnerID != nil && r.s.declarations[p.DeclarationID].OwnerID != *query.OwnerID {
			continue
		}
		if query.AfterID != nil && p.ID.String() <= query.AfterID.String() {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	if query.Limit > 0 && len(all) > query.Limit {
		all = all[:query.Limit]
	}
	return all, nil
}

// payments

type memPayments struct{ s *memStore }

func (r memPayments) Create(ctx context.Context, p *declaration.Payment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentCreates++
	if s.rejectPaymentCodes > 0 {
		s.rejectPaymentCodes--
		return declaration.ErrDuplicateCode
	}
	for _, existing := range s.payments {
		if existing.Code == p.Code {
			return declaration.ErrDuplicateCode
		}
	}
	s.seq++
	s.paymentSeq[p.ID] = s.seq
	stored := *p
	stored.ClearDomainEvents()
	s.payments[p.ID] = stored
	return nil
}

func (r memPayments) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("payment", id)
	}
	return &p, nil
}

func (r memPayments) FindLatestByDeclaration(ctx context.Context, declarationID uuid.UUID) (*declaration.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payments := r.s.paymentsOfLocked(declarationID)
	if len(payments) == 0 {
		return nil, shared.NewNotFoundError("payment for declaration", declarationID)
	}
	return &payments[0], nil
}

func (r memPayments) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.paymentsOfLocked(declarationID), nil
}

func (r memPayments) UpdateStatus(ctx context.Context, p *declaration.Payment, expected declaration.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[p.ID]
	if !ok {
		return shared.NewNotFoundError("payment", p.ID)
	}
	if r.s.paymentUpdateErr != nil {
		return r.s.paymentUpdateErr
	}
	if stored.Status != expected {
		return declaration.NewPaymentConflictError(p.Code, expected, stored.Status)
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPayments) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.payments {
		if p.DeclarationID == declarationID {
			delete(r.s.payments, id)
			delete(r.s.paymentSeq, id)
			n++
		}
	}
	return n, nil
}
