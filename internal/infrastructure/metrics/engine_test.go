package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics_OperationCompleted(t *testing.T) {
	m := NewEngineMetricsWithRegistry(prometheus.NewRegistry())

	m.OperationCompleted("submit", nil)
	m.OperationCompleted("submit", nil)
	m.OperationCompleted("submit", shared.NewValidationError("EMPTY_DECLARATION", "no participants"))
	m.OperationCompleted("approve_with_payment", shared.ErrConcurrencyConflict)
	m.OperationCompleted("delete", errors.New("db gone"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("submit", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("submit", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("approve_with_payment", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("delete", "internal")))
}

func TestEngineMetrics_WarningsAndRetries(t *testing.T) {
	m := NewEngineMetricsWithRegistry(prometheus.NewRegistry())

	m.FanoutWarning("reject", "PARTICIPANT_FANOUT_FAILED")
	m.CodeRetry("create")
	m.CodeRetry("create")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fanoutWarnings.WithLabelValues("reject", "PARTICIPANT_FANOUT_FAILED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.codeRetries.WithLabelValues("create")))
}

func TestEngineMetrics_Handler(t *testing.T) {
	m := NewEngineMetrics()
	m.OperationCompleted("create", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `kekhai_engine_operations_total{operation="create",outcome="success"} 1`))
	assert.Contains(t, text, "go_goroutines")
}
