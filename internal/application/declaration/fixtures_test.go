package declaration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sequenceCodes hands out predictable, increasing codes
type sequenceCodes struct {
	mu           sync.Mutex
	declarations int
	payments     int
}

func (g *sequenceCodes) DeclarationCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declarations++
	return fmt.Sprintf("KK-20260101-%08d", g.declarations)
}

func (g *sequenceCodes) PaymentCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments++
	return fmt.Sprintf("TT-20260101-%08d", g.payments)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type recordingMetrics struct {
	mu        sync.Mutex
	completed map[string]int
	failed    map[string]int
	warnings  map[string]int
	retries   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		completed: make(map[string]int),
		failed:    make(map[string]int),
		warnings:  make(map[string]int),
		retries:   make(map[string]int),
	}
}

func (m *recordingMetrics) OperationCompleted(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed[op]++
		return
	}
	m.completed[op]++
}

func (m *recordingMetrics) FanoutWarning(op, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[op+":"+code]++
}

func (m *recordingMetrics) CodeRetry(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[op]++
}

type testEnv struct {
	store     *memStore
	engine    *Engine
	publisher *recordingPublisher
	sleep     *recordingSleep
	metrics   *recordingMetrics
	owner     Actor
	admin     Actor
}

type envOption func(cfg *EngineConfig, store *memStore)

// withTransactions makes the engine run primary change and fan-out atomically
func withTransactions() envOption {
	return func(cfg *EngineConfig, store *memStore) {
		cfg.Transactions = store
	}
}

// withClock drives the engine and its ledger from now
func withClock(now func() time.Time) envOption {
	return func(cfg *EngineConfig, _ *memStore) {
		cfg.Clock = now
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	store := newMemStore()
	env := &testEnv{
		store:     store,
		publisher: &recordingPublisher{},
		sleep:     &recordingSleep{},
		metrics:   newRecordingMetrics(),
		owner:     Actor{UserID: uuid.New()},
		admin:     Actor{UserID: uuid.New(), IsAdmin: true},
	}
	cfg := EngineConfig{
		Declarations: store.Declarations(),
		Participants: store.Participants(),
		Payments:     store.Payments(),
		Codes:        &sequenceCodes{},
		Publisher:    env.publisher,
		Logger:       zap.NewNop(),
		Metrics:      env.metrics,
		PaymentTTL:   48 * time.Hour,
		Sleep:        env.sleep.sleep,
	}
	for _, opt := range opts {
		opt(&cfg, store)
	}
	env.engine = NewEngine(cfg)
	return env
}

func companyOrg() declaration.IssuingOrganization {
	id := uuid.New()
	return declaration.IssuingOrganization{CompanyID: &id}
}

func participantInput(name string, amount int64) declaration.ParticipantInput {
	code := fmt.Sprintf("HN%08d", amount)
	return declaration.ParticipantInput{
		FullName:      name,
		BirthDate:     "1990-01-01",
		InsuranceCode: &code,
		Months:        12,
		Amount:        decimal.NewFromInt(amount),
	}
}

// draft creates a declaration through the engine with the given participant amounts
func (env *testEnv) draft(t *testing.T, amounts ...int64) *declaration.Declaration {
	t.Helper()
	ctx := context.Background()
	res, err := env.engine.CreateDeclaration(ctx, CreateDeclarationRequest{
		Actor:        env.owner,
		Type:         "603",
		Name:         "Batch",
		Organization: companyOrg(),
	})
	require.NoError(t, err)
	for i, amount := range amounts {
		_, err := env.engine.AddParticipant(ctx, AddParticipantRequest{
			Actor:         env.owner,
			DeclarationID: res.Value.ID,
			Input:         participantInput(fmt.Sprintf("Nguyen Van %d", i+1), amount),
		})
		require.NoError(t, err)
	}
	return res.Value
}

// submitted creates a declaration and submits it
func (env *testEnv) submitted(t *testing.T, amounts ...int64) *declaration.Declaration {
	t.Helper()
	d := env.draft(t, amounts...)
	res, err := env.engine.SubmitDeclaration(context.Background(), TransitionRequest{Actor: env.owner, DeclarationID: d.ID})
	require.NoError(t, err)
	return res.Value
}

// approved creates a declaration and approves it into pending_payment
func (env *testEnv) approved(t *testing.T, amounts ...int64) *ApprovalResult {
	t.Helper()
	d := env.submitted(t, amounts...)
	res, err := env.engine.ApproveWithPayment(context.Background(), ApproveRequest{Actor: env.admin, DeclarationID: d.ID})
	require.NoError(t, err)
	return res.Value
}

// inStatus seeds a declaration directly in the store with n participants mirroring it
func (env *testEnv) inStatus(t *testing.T, status declaration.Status, n int) *declaration.Declaration {
	t.Helper()
	d, err := declaration.NewDeclaration(fmt.Sprintf("KK-SEED-%s", uuid.NewString()[:8]), env.owner.UserID, "603", "Seeded", companyOrg())
	require.NoError(t, err)
	d.Status = status
	d.ClearDomainEvents()
	env.store.putDeclaration(d)
	for i := 1; i <= n; i++ {
		p, err := declaration.NewParticipant(d.ID, i, participantInput(fmt.Sprintf("Tran Thi %d", i), 100000))
		require.NoError(t, err)
		p.Status = declaration.ParticipantStatusFor(status)
		env.store.putParticipant(p)
	}
	return d
}

func statusPtr(s declaration.Status) *declaration.Status {
	return &s
}

var errInjected = errors.New("injected failure")
