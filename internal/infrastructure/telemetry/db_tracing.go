package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Queries above this are flagged on their span
	DBSystem        string        // postgresql or sqlite
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps the otelgorm plugin with slow query detection.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// Register installs otelgorm and the timing callbacks on db. A disabled plugin is a no-op.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("kekhai_timing:before_create", markQueryStart) },
		func() error { return cb.Query().Before("gorm:query").Register("kekhai_timing:before_query", markQueryStart) },
		func() error { return cb.Update().Before("gorm:update").Register("kekhai_timing:before_update", markQueryStart) },
		func() error { return cb.Delete().Before("gorm:delete").Register("kekhai_timing:before_delete", markQueryStart) },
		func() error { return cb.Row().Before("gorm:row").Register("kekhai_timing:before_row", markQueryStart) },
		func() error { return cb.Raw().Before("gorm:raw").Register("kekhai_timing:before_raw", markQueryStart) },
		func() error { return cb.Create().After("gorm:create").Register("kekhai_timing:after_create", p.afterQuery) },
		func() error { return cb.Query().After("gorm:query").Register("kekhai_timing:after_query", p.afterQuery) },
		func() error { return cb.Update().After("gorm:update").Register("kekhai_timing:after_update", p.afterQuery) },
		func() error { return cb.Delete().After("gorm:delete").Register("kekhai_timing:after_delete", p.afterQuery) },
		func() error { return cb.Row().After("gorm:row").Register("kekhai_timing:after_row", p.afterQuery) },
		func() error { return cb.Raw().After("gorm:raw").Register("kekhai_timing:after_raw", p.afterQuery) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = WithQueryStartTime(db.Statement.Context)
	}
}

// WithQueryStartTime returns a context carrying the current time as query start
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}

// afterQuery annotates the statement's span with rows, table, errors and slowness
func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(startTime); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
		p.logger.Warn("slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}
}
