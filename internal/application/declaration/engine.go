package declaration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Operation names used for logging, metrics and spans
const (
	OpCreate            = "create"
	OpAddParticipant    = "add_participant"
	OpUpdateParticipant = "update_participant"
	OpRemoveParticipant = "remove_participant"
	OpSubmit            = "submit"
	OpApprove           = "approve_with_payment"
	OpReject            = "reject"
	OpSetProcessing     = "set_processing"
	OpConfirmPayment    = "confirm_payment"
	OpFailPayment       = "fail_payment"
	OpCancelPayment     = "cancel_payment"
	OpReissuePayment    = "reissue_payment"
	OpMarkPaid          = "mark_paid"
	OpFinalizeApproval  = "finalize_approval"
	OpSendRequest       = "send_request"
	OpConfirmRequest    = "confirm_request"
	OpComplete          = "complete"
	OpSplit             = "split"
	OpAssignCaseFile    = "assign_case_file_code"
	OpRepair            = "repair_participants"
	OpDelete            = "delete"
)

// EngineConfig holds the collaborators of the consistency engine
type EngineConfig struct {
	Declarations declaration.DeclarationRepository
	Participants declaration.ParticipantRepository
	Payments     declaration.PaymentRepository
	// Transactions is optional. Without it the participant fan-out runs after the
	// primary change and its failure is reported as a warning.
	Transactions TransactionScope
	Codes        declaration.CodeGenerator
	Publisher    shared.EventPublisher
	Logger       *zap.Logger
	Metrics      Metrics
	Retry        RetryPolicy
	PaymentTTL   time.Duration
	Clock        func() time.Time
	Sleep        SleepFunc
}

// Engine moves declarations, their participants and payments through the
// shared lifecycle. Every status write is a compare-and-swap on the expected
// pre-state.
type Engine struct {
	declarations declaration.DeclarationRepository
	participants declaration.ParticipantRepository
	payments     declaration.PaymentRepository
	tx           TransactionScope
	codes        declaration.CodeGenerator
	ledger       *PaymentLedger
	publisher    shared.EventPublisher
	logger       *zap.Logger
	metrics      Metrics
	retry        RetryPolicy
	now          func() time.Time
	sleep        SleepFunc
}

// NewEngine creates a new Engine
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	codes := cfg.Codes
	if codes == nil {
		codes = declaration.NewRandomCodeGenerator("")
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Engine{
		declarations: cfg.Declarations,
		participants: cfg.Participants,
		payments:     cfg.Payments,
		tx:           cfg.Transactions,
		codes:        codes,
		ledger:       NewPaymentLedger(cfg.Payments, codes, cfg.PaymentTTL, now),
		publisher:    cfg.Publisher,
		logger:       logger.Named("declaration-engine"),
		metrics:      metrics,
		retry:        retry,
		now:          now,
		sleep:        sleep,
	}
}

// Ledger returns the payment ledger used by the engine
func (e *Engine) Ledger() *PaymentLedger {
	return e.ledger
}

// stores is the set of repositories one workflow step runs against
type stores struct {
	declarations declaration.DeclarationRepository
	participants declaration.ParticipantRepository
	payments     declaration.PaymentRepository
	ledger       *PaymentLedger
	atomic       bool
}

func (e *Engine) direct() stores {
	return stores{
		declarations: e.declarations,
		participants: e.participants,
		payments:     e.payments,
		ledger:       e.ledger,
	}
}

func (e *Engine) bind(repos TransactionalRepositories) stores {
	return stores{
		declarations: repos.Declarations(),
		participants: repos.Participants(),
		payments:     repos.Payments(),
		ledger:       e.ledger.withRepository(repos.Payments()),
		atomic:       true,
	}
}

type primaryFunc func(ctx context.Context, s stores) (uuid.UUID, error)

type fanoutFunc func(ctx context.Context, s stores) (int64, error)

// commit runs the primary change and then the participant fan-out. Inside a
// transaction scope both succeed or neither does. Without one a failed fan-out
// leaves the primary change committed and comes back as a FANOUT_FAILED warning.
func (e *Engine) commit(ctx context.Context, op string, primary primaryFunc, fanout fanoutFunc) ([]Warning, error) {
	if e.tx != nil {
		var declarationID uuid.UUID
		affected := int64(-1)
		err := e.tx.Execute(ctx, func(repos TransactionalRepositories) error {
			s := e.bind(repos)
			id, err := primary(ctx, s)
			if err != nil {
				return err
			}
			declarationID = id
			if fanout == nil {
				return nil
			}
			n, err := fanout(ctx, s)
			if err != nil {
				return shared.WrapError(err, WarningFanoutFailed, "Failed to propagate declaration status to participants")
			}
			affected = n
			return nil
		})
		if err != nil {
			return nil, err
		}
		recordFanout(ctx, declarationID, affected)
		return e.zeroRowWarnings(op, declarationID, affected), nil
	}

	s := e.direct()
	declarationID, err := primary(ctx, s)
	if err != nil {
		return nil, err
	}
	if fanout == nil {
		return nil, nil
	}
	n, err := fanout(ctx, s)
	if err != nil {
		e.logger.Error("participant fan-out failed after primary change committed",
			zap.String("operation", op),
			zap.String("declaration_id", declarationID.String()),
			zap.Error(err),
		)
		e.metrics.FanoutWarning(op, WarningFanoutFailed)
		return []Warning{{
			Code:          WarningFanoutFailed,
			Message:       "Participants were not updated; run repair to resynchronize them",
			DeclarationID: declarationID,
			Operation:     op,
		}}, nil
	}
	recordFanout(ctx, declarationID, n)
	return e.zeroRowWarnings(op, declarationID, n), nil
}

func recordFanout(ctx context.Context, declarationID uuid.UUID, affected int64) {
	if affected < 0 {
		return
	}
	telemetry.SetAttributes(trace.SpanFromContext(ctx),
		telemetry.SpanAttrDeclarationID, declarationID.String(),
		telemetry.SpanAttrParticipants, affected,
	)
}

func (e *Engine) zeroRowWarnings(op string, declarationID uuid.UUID, affected int64) []Warning {
	if affected != 0 {
		return nil
	}
	e.logger.Warn("fan-out matched no participants",
		zap.String("operation", op),
		zap.String("declaration_id", declarationID.String()),
	)
	e.metrics.FanoutWarning(op, WarningNoParticipants)
	return []Warning{{
		Code:          WarningNoParticipants,
		Message:       "Declaration has no participants to update",
		DeclarationID: declarationID,
		Operation:     op,
	}}
}

// begin opens a span for the operation. The returned func ends it, records the
// outcome and returns err with store failures wrapped.
func (e *Engine) begin(ctx context.Context, op string, id uuid.UUID) (context.Context, func(error) error) {
	var opts []telemetry.SpanOption
	if id != uuid.Nil {
		opts = append(opts, telemetry.WithAttribute(telemetry.SpanAttrDeclarationID, id.String()))
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "declaration", op, opts...)
	return ctx, func(err error) error {
		err = wrapStoreError(op, err)
		if err != nil {
			telemetry.RecordError(span, err)
		}
		e.metrics.OperationCompleted(op, err)
		span.End()
		return err
	}
}

// wrapStoreError gives errors that are not already domain errors a domain code and
// message. The original error stays reachable through Unwrap.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError(err, declaration.CodeOperationAborted,
			fmt.Sprintf("Operation %s was aborted before it finished", op))
	}
	return shared.WrapError(err, declaration.CodeStoreFailure,
		fmt.Sprintf("Declaration store failed during %s", op))
}

// publishPending publishes the declaration's recorded events followed by extra ones.
// Subscriber failures never reach the caller.
func (e *Engine) publishPending(ctx context.Context, d *declaration.Declaration, extra ...shared.DomainEvent) {
	events := make([]shared.DomainEvent, 0, len(d.GetDomainEvents())+len(extra))
	events = append(events, d.GetDomainEvents()...)
	events = append(events, extra...)
	d.ClearDomainEvents()
	if e.publisher == nil || len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		e.logger.Warn("failed to publish declaration events",
			zap.String("declaration_id", d.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

// guardStatus resolves the compare-and-swap pre-state for a transition
func guardStatus(d *declaration.Declaration, want *declaration.Status) (declaration.Status, error) {
	if want == nil {
		return d.Status, nil
	}
	if *want != d.Status {
		return "", declaration.NewStatusConflictError(d.ID, *want, d.Status)
	}
	return *want, nil
}

func (e *Engine) logConflict(op string, d *declaration.Declaration, expected declaration.Status, err error) {
	if shared.IsConflict(err) {
		e.logger.Warn("status compare-and-swap missed",
			zap.String("operation", op),
			zap.String("declaration_id", d.ID.String()),
			zap.String("expected_status", expected.String()),
			zap.Error(err),
		)
	}
}
