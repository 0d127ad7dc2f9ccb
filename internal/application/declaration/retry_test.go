package declaration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 1, RetryPolicy{}.attempts())
}

func TestRetryOnDuplicateCode(t *testing.T) {
	tests := []struct {
		name         string
		failures     []error
		wantErr      error
		wantAttempts int
		wantDelays   []time.Duration
	}{
		{
			name:         "first attempt succeeds",
			wantAttempts: 1,
		},
		{
			name:         "succeeds on the third attempt",
			failures:     []error{declaration.ErrDuplicateCode, declaration.ErrDuplicateCode},
			wantAttempts: 3,
			wantDelays:   []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:         "exhausted",
			failures:     []error{declaration.ErrDuplicateCode, declaration.ErrDuplicateCode, declaration.ErrDuplicateCode, nil},
			wantErr:      declaration.ErrDuplicateCode,
			wantAttempts: 3,
			wantDelays:   []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:         "other errors stop immediately",
			failures:     []error{errInjected},
			wantErr:      errInjected,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			attempts := 0
			err := env.engine.retryOnDuplicateCode(context.Background(), OpCreate, func(attempt int) error {
				attempts++
				assert.Equal(t, attempts, attempt)
				if attempt <= len(tt.failures) {
					return tt.failures[attempt-1]
				}
				return nil
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
			assert.Equal(t, tt.wantDelays, env.sleep.delays)
		})
	}
}

func TestRetryOnDuplicateCode_StopsWhenContextEnds(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := env.engine.retryOnDuplicateCode(ctx, OpCreate, func(int) error {
		attempts++
		return declaration.ErrDuplicateCode
	})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, attempts)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
