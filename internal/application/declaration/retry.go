package declaration

import (
	"context"
	"errors"
	"time"

	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RetryPolicy bounds the regenerate-and-retry loop around code-unique inserts.
// The delay before retry n is BaseDelay*n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts with 100ms then 200ms between them
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Delay returns the pause after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryOnDuplicateCode runs fn until it succeeds, fails with anything other than
// a code collision, or the policy is exhausted. The last error is returned.
func (e *Engine) retryOnDuplicateCode(ctx context.Context, op string, fn func(attempt int) error) error {
	attempts := e.retry.attempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !errors.Is(err, declaration.ErrDuplicateCode) {
			return err
		}
		if attempt == attempts {
			break
		}
		e.logger.Warn("generated code already exists, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", e.retry.Delay(attempt)),
		)
		e.metrics.CodeRetry(op)
		telemetry.AddEvent(trace.SpanFromContext(ctx), "code_collision", telemetry.SpanAttrAttempt, attempt)
		if sleepErr := e.sleep(ctx, e.retry.Delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	e.logger.Error("code generation retries exhausted",
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return err
}
