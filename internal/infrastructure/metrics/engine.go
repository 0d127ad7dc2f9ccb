// Package metrics exports declaration engine outcomes to Prometheus and OTLP.
package metrics

import (
	"net/http"

	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricOperationsTotal  = "kekhai_engine_operations_total"
	MetricFanoutWarnings   = "kekhai_fanout_warnings_total"
	MetricCodeRetriesTotal = "kekhai_code_generation_retries_total"
)

// OutcomeSuccess labels operations that returned no error
const OutcomeSuccess = "success"

// EngineMetrics implements the engine's Metrics port with Prometheus counters.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type EngineMetrics struct {
	registry       *prometheus.Registry
	operations     *prometheus.CounterVec
	fanoutWarnings *prometheus.CounterVec
	codeRetries    *prometheus.CounterVec
}

// NewEngineMetrics creates the counters on a fresh registry that also carries
// the Go runtime and process collectors.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewEngineMetricsWithRegistry(registry)
}

// NewEngineMetricsWithRegistry registers the counters on the given registry
func NewEngineMetricsWithRegistry(registry *prometheus.Registry) *EngineMetrics {
	m := &EngineMetrics{
		registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricOperationsTotal,
				Help: "Declaration engine operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		fanoutWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFanoutWarnings,
				Help: "Soft warnings returned next to a committed change, by code.",
			},
			[]string{"operation", "code"},
		),
		codeRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCodeRetriesTotal,
				Help: "Retries caused by generated code collisions.",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(m.operations, m.fanoutWarnings, m.codeRetries)
	return m
}

// OperationCompleted counts one engine call; the outcome is the error kind or "success"
func (m *EngineMetrics) OperationCompleted(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(shared.KindOf(err))
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// FanoutWarning counts a soft warning such as a failed participant fan-out
func (m *EngineMetrics) FanoutWarning(operation, code string) {
	m.fanoutWarnings.WithLabelValues(operation, code).Inc()
}

// CodeRetry counts a regenerated code after a collision
func (m *EngineMetrics) CodeRetry(operation string) {
	m.codeRetries.WithLabelValues(operation).Inc()
}

// Registry returns the underlying registry
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for the registry
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ appdecl.Metrics = (*EngineMetrics)(nil)
