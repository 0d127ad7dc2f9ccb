package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/kekhai/backend/internal/infrastructure/event"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/infrastructure/metrics"
	"github.com/kekhai/backend/internal/infrastructure/migration"
	"github.com/kekhai/backend/internal/infrastructure/persistence"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"github.com/kekhai/backend/internal/interfaces/http/middleware"
	"github.com/kekhai/backend/internal/interfaces/http/router"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	bootLog, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OTLP log export is teed into the main logger once the pipeline exists
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log, err := logger.New(logger.FromAppConfig(cfg.Log), logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting declaration service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Telemetry.SpanProfiles,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}

	dbOpts := []persistence.Option{
		persistence.WithLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level)),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbSystem := "postgresql"
		if cfg.Database.Driver == config.DriverSQLite {
			dbSystem = "sqlite"
		}
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, log)))
	}

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(db, &cfg.Database, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver()))

	declarations := persistence.NewGormDeclarationRepository(db.DB)
	participants := persistence.NewGormParticipantRepository(db.DB)
	payments := persistence.NewGormPaymentRepository(db.DB)

	var transactions appdecl.TransactionScope
	if cfg.Declaration.Transactional {
		transactions = persistence.NewGormTransactionScope(db.DB)
	}

	eventBus := event.NewInMemoryEventBus(log)
	relay := startRelay(cfg.Redis, eventBus, log)

	engineMetrics := metrics.NewEngineMetrics()
	var recorder appdecl.Metrics = engineMetrics
	if meterProvider.IsEnabled() {
		otelMetrics, err := metrics.NewOTelEngineMetrics(meterProvider.Meter(metrics.MeterName))
		if err != nil {
			log.Fatal("Failed to create OTLP engine counters", zap.Error(err))
		}
		recorder = metrics.Tee{engineMetrics, otelMetrics}
	}
	engine := appdecl.NewEngine(appdecl.EngineConfig{
		Declarations: declarations,
		Participants: participants,
		Payments:     payments,
		Transactions: transactions,
		Codes:        declaration.NewRandomCodeGenerator(cfg.Declaration.CodePrefix),
		Publisher:    eventBus,
		Logger:       log,
		Metrics:      recorder,
		Retry: appdecl.RetryPolicy{
			MaxAttempts: cfg.Declaration.CreateMaxAttempts,
			BaseDelay:   cfg.Declaration.CreateRetryBaseDelay,
		},
		PaymentTTL: cfg.Declaration.PaymentTTL,
	})
	duplicates := appdecl.NewDuplicateService(appdecl.DuplicateServiceConfig{
		Participants: participants,
		PageSize:     cfg.Declaration.DuplicatePageSize,
		Logger:       log,
	})

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.ServiceName != "" {
		tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	}

	handler := router.New(router.Dependencies{
		Engine:         engine,
		Duplicates:     duplicates,
		DB:             sqlDB,
		Logger:         log,
		HTTP:           cfg.HTTP,
		Tracing:        tracingCfg,
		Version:        version,
		Registerer:     engineMetrics.Registry(),
		MetricsHandler: engineMetrics.Handler(),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        handler,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// In-flight notifications drain before the relay connection goes away
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn("Failed to close notification relay", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush logs", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema brings the schema up to date: SQL migrations for postgres,
// model auto-migration for sqlite. The migrator owns its own connection
// because closing it closes the underlying pool.
func migrateSchema(db *persistence.Database, cfg *config.DatabaseConfig, log *zap.Logger) error {
	if db.Driver() == config.DriverSQLite {
		return db.AutoMigrate()
	}
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(conn, log.Named("migrate"))
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

// startRelay subscribes the Redis notification relay to the bus when Redis is
// enabled. A Redis outage only disables notifications.
func startRelay(cfg config.RedisConfig, bus *event.InMemoryEventBus, log *zap.Logger) *event.RedisNotificationRelay {
	if !cfg.Enabled {
		return nil
	}
	relay, err := event.NewRedisNotificationRelay(cfg, event.WithRelayLogger(log))
	if err != nil {
		log.Warn("Redis unavailable, status notifications disabled", zap.Error(err))
		return nil
	}
	bus.Subscribe(relay)
	log.Info("Status notifications relayed to Redis", zap.String("channel", relay.Channel()))
	return relay
}
