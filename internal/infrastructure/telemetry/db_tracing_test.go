package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func setupRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, attr := range span.Attributes() {
		out[string(attr.Key)] = attr.Value.AsInterface()
	}
	return out
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin_FillsThreshold(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, nil)
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
}

func TestDBTracingPlugin_Register_Disabled(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	require.NoError(t, plugin.Register(db))
	assert.Nil(t, db.Callback().Query().Get("kekhai_timing:after_query"))
}

func TestDBTracingPlugin_Register_EmitsQuerySpans(t *testing.T) {
	tp, sr := setupRecorder(t)
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.Register(db))
	assert.NotNil(t, db.Callback().Query().Get("kekhai_timing:after_query"))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "declaration.submit")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	parent.End()

	spans := sr.Ended()
	require.GreaterOrEqual(t, len(spans), 2)
	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Parent().SpanID() == parent.SpanContext().SpanID() {
			child = s
		}
	}
	require.NotNil(t, child, "expected a gorm span under the service span")
}

func TestDBTracingPlugin_Register_Twice(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())

	require.NoError(t, plugin.Register(db))
	assert.Error(t, plugin.Register(db))
}

func TestAfterQuery_Annotations(t *testing.T) {
	tp, sr := setupRecorder(t)
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	tx := db.WithContext(ctx).Create(&tracedRow{Name: "a"})
	require.NoError(t, tx.Error)
	plugin.afterQuery(tx)
	span.End()

	attrs := spanAttributes(sr.Ended()[0])
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
	assert.Equal(t, "traced_rows", attrs["db.sql.table"])
	assert.NotContains(t, attrs, "db.slow_query")
}

func TestAfterQuery_SlowQuery(t *testing.T) {
	tp, sr := setupRecorder(t)
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))
	var rows []tracedRow
	tx := db.WithContext(ctx).Find(&rows)
	plugin.afterQuery(tx)
	span.End()

	recorded := sr.Ended()[0]
	assert.Equal(t, true, spanAttributes(recorded)["db.slow_query"])
	require.Len(t, recorded.Events(), 1)
	assert.Equal(t, "slow_query_warning", recorded.Events()[0].Name)
}

func TestAfterQuery_Errors(t *testing.T) {
	t.Run("record not found is not an error", func(t *testing.T) {
		tp, sr := setupRecorder(t)
		db := setupTestDB(t)
		plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		var row tracedRow
		tx := db.WithContext(ctx).First(&row, 9999)
		require.ErrorIs(t, tx.Error, gorm.ErrRecordNotFound)
		plugin.afterQuery(tx)
		span.End()

		assert.NotEqual(t, codes.Error, sr.Ended()[0].Status().Code)
	})

	t.Run("statement failure marks the span", func(t *testing.T) {
		tp, sr := setupRecorder(t)
		db := setupTestDB(t)
		plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		var rows []tracedRow
		tx := db.WithContext(ctx).Table("missing_table").Find(&rows)
		require.Error(t, tx.Error)
		plugin.afterQuery(tx)
		span.End()

		assert.Equal(t, codes.Error, sr.Ended()[0].Status().Code)
	})
}

func TestAfterQuery_NonRecordingSpan(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

	tx := db.WithContext(context.Background()).Create(&tracedRow{Name: "a"})
	assert.NotPanics(t, func() { plugin.afterQuery(tx) })
}
