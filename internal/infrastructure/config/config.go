package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Declaration DeclarationConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver             string // postgres or sqlite
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	SQLitePath         string // file path or ":memory:" when Driver is sqlite
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int // in minutes
	ConnMaxIdleTime    int // in minutes
	SlowQueryThreshold time.Duration
}

// RedisConfig holds Redis connection settings for the notification relay
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// DeclarationConfig tunes the declaration engine
type DeclarationConfig struct {
	CodePrefix           string
	CreateMaxAttempts    int
	CreateRetryBaseDelay time.Duration
	PaymentTTL           time.Duration
	DuplicatePageSize    int
	// Transactional runs each status change and its participant fan-out in one
	// database transaction. When false, fan-out failures surface as warnings.
	Transactional bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	LogsEnabled       bool    // Ship zap logs over OTLP as well
	MetricsEnabled    bool    // Push engine counters over OTLP next to the Prometheus scrape
	SpanProfiles      bool    // Label CPU profile samples with the active span id
	// MetricsExportInterval is the OTLP push period (default: 60s)
	MetricsExportInterval time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for span flags (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with KEKHAI_ prefix (e.g., KEKHAI_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("KEKHAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:             v.GetString("database.driver"),
			Host:               v.GetString("database.host"),
			Port:               v.GetInt("database.port"),
			User:               v.GetString("database.user"),
			Password:           v.GetString("database.password"),
			DBName:             v.GetString("database.dbname"),
			SSLMode:            v.GetString("database.sslmode"),
			SQLitePath:         v.GetString("database.sqlite_path"),
			MaxOpenConns:       v.GetInt("database.max_open_conns"),
			MaxIdleConns:       v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime:    v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime:    v.GetInt("database.conn_max_idle_time"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Declaration: DeclarationConfig{
			CodePrefix:           v.GetString("declaration.code_prefix"),
			CreateMaxAttempts:    v.GetInt("declaration.create_max_attempts"),
			CreateRetryBaseDelay: v.GetDuration("declaration.create_retry_base_delay"),
			PaymentTTL:           v.GetDuration("declaration.payment_ttl"),
			DuplicatePageSize:    v.GetInt("declaration.duplicate_page_size"),
			Transactional:        v.GetBool("declaration.transactional"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),

			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kekhai-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "kekhai"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "kekhai.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQueryThreshold == 0 {
		cfg.Database.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "kekhai:notifications"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Declaration.CreateMaxAttempts == 0 {
		cfg.Declaration.CreateMaxAttempts = 3
	}
	if cfg.Declaration.CreateRetryBaseDelay == 0 {
		cfg.Declaration.CreateRetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.Declaration.PaymentTTL == 0 {
		cfg.Declaration.PaymentTTL = 24 * time.Hour
	}
	if cfg.Declaration.DuplicatePageSize == 0 {
		cfg.Declaration.DuplicatePageSize = 500
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Declaration.CreateMaxAttempts < 1 {
		return fmt.Errorf("declaration.create_max_attempts must be at least 1")
	}
	if c.Declaration.CreateRetryBaseDelay < 0 {
		return fmt.Errorf("declaration.create_retry_base_delay cannot be negative")
	}
	if c.Declaration.PaymentTTL < 0 {
		return fmt.Errorf("declaration.payment_ttl cannot be negative")
	}
	if c.Declaration.DuplicatePageSize < 1 {
		return fmt.Errorf("declaration.duplicate_page_size must be positive")
	}
	if len(c.Declaration.CodePrefix) > 10 {
		return fmt.Errorf("declaration.code_prefix cannot exceed 10 characters")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverSQLite {
			return fmt.Errorf("database.driver sqlite is not supported in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
