package metrics

import (
	"context"

	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTLP instrument names.
const (
	MeterName             = "github.com/kekhai/backend/engine"
	InstrumentOperations  = "kekhai.engine.operations"
	InstrumentWarnings    = "kekhai.engine.warnings"
	InstrumentCodeRetries = "kekhai.engine.code_retries"
)

const (
	attrOperation = attribute.Key("operation")
	attrOutcome   = attribute.Key("outcome")
	attrCode      = attribute.Key("code")
)

// OTelEngineMetrics implements the engine's Metrics port with OpenTelemetry
// counters, exported by whatever reader the meter's provider carries.
type OTelEngineMetrics struct {
	operations  *telemetry.Counter
	warnings    *telemetry.Counter
	codeRetries *telemetry.Counter
}

// NewOTelEngineMetrics creates the counters on the meter
func NewOTelEngineMetrics(meter metric.Meter) (*OTelEngineMetrics, error) {
	operations, err := telemetry.NewCounter(meter, InstrumentOperations,
		"Declaration engine operations by outcome.", "{operation}")
	if err != nil {
		return nil, err
	}
	warnings, err := telemetry.NewCounter(meter, InstrumentWarnings,
		"Soft warnings returned next to a committed change.", "{warning}")
	if err != nil {
		return nil, err
	}
	codeRetries, err := telemetry.NewCounter(meter, InstrumentCodeRetries,
		"Retries caused by generated code collisions.", "{retry}")
	if err != nil {
		return nil, err
	}
	return &OTelEngineMetrics{operations: operations, warnings: warnings, codeRetries: codeRetries}, nil
}

// OperationCompleted counts one engine call
func (m *OTelEngineMetrics) OperationCompleted(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(shared.KindOf(err))
	}
	m.operations.Inc(context.Background(), attrOperation.String(operation), attrOutcome.String(outcome))
}

// FanoutWarning counts a warning by code
func (m *OTelEngineMetrics) FanoutWarning(operation, code string) {
	m.warnings.Inc(context.Background(), attrOperation.String(operation), attrCode.String(code))
}

// CodeRetry counts a regenerated code
func (m *OTelEngineMetrics) CodeRetry(operation string) {
	m.codeRetries.Inc(context.Background(), attrOperation.String(operation))
}

// Tee forwards every measurement to each recorder in order
type Tee []appdecl.Metrics

func (t Tee) OperationCompleted(operation string, err error) {
	for _, m := range t {
		m.OperationCompleted(operation, err)
	}
}

func (t Tee) FanoutWarning(operation, code string) {
	for _, m := range t {
		m.FanoutWarning(operation, code)
	}
}

func (t Tee) CodeRetry(operation string) {
	for _, m := range t {
		m.CodeRetry(operation)
	}
}

var (
	_ appdecl.Metrics = (*OTelEngineMetrics)(nil)
	_ appdecl.Metrics = Tee(nil)
)
