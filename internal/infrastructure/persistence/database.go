package persistence

import (
	"fmt"
	"time"

	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/infrastructure/persistence/models"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB     *gorm.DB
	driver string
}

// Option configures NewDatabase
type Option func(*options)

type options struct {
	logger   *zap.Logger
	logLevel gormlogger.LogLevel
	tracing  *telemetry.DBTracingPlugin
}

// WithLogger routes GORM logging through zap at the given level
func WithLogger(l *zap.Logger, level gormlogger.LogLevel) Option {
	return func(o *options) {
		o.logger = l
		o.logLevel = level
	}
}

// WithTracing registers the otelgorm plugin on the connection
func WithTracing(plugin *telemetry.DBTracingPlugin) Option {
	return func(o *options) {
		o.tracing = plugin
	}
}

// NewDatabase opens a postgres or sqlite connection according to cfg.Driver
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{logLevel: gormlogger.Silent}
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	case config.DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormLogger := gormlogger.Default.LogMode(o.logLevel)
	if o.logger != nil {
		gormLogger = logger.NewGormLogger(o.logger, o.logLevel, logger.WithSlowThreshold(cfg.SlowQueryThreshold))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver != config.DriverSQLite,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// one connection keeps an in-memory database shared and serializes writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if o.tracing != nil {
		if err := o.tracing.Register(db); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	return &Database{DB: db, driver: cfg.Driver}, nil
}

// AutoMigrate creates the schema from the persistence models. Postgres
// deployments use the SQL migrations instead; this serves sqlite.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(models.All()...)
}

// Driver returns the configured driver name
func (d *Database) Driver() string {
	return d.driver
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
