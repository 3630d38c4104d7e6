package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Storage   StorageConfig
	Ingest    IngestConfig
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
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for the redis client.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool    // Export invoice metrics over OTLP
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// StorageConfig holds the S3 settings used to fetch OCR payloads
type StorageConfig struct {
	Endpoint     string // custom endpoint (MinIO, LocalStack); empty = AWS
	Region       string
	Bucket       string // default bucket for bare keys
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	UseSSL       bool // scheme for endpoints given without one
}

// Sequence backends for GRN numbering
const (
	SequenceMemory   = "memory"
	SequencePostgres = "postgres"
	SequenceRedis    = "redis"
)

// IngestConfig holds the defaults applied while mapping and persisting
// invoices.
type IngestConfig struct {
	Schema             string // tenant schema; empty = unqualified table names
	CreatedBy          string
	ExternalSystem     string
	DefaultCurrency    string
	LeadDays           int
	DefaultCountryCode string
	DefaultStateCode   string // GST state code used when a GSTIN is missing
	CostCenterCode     string
	ProfitCenterCode   string
	ProjectCode        string
	PlantCode          string
	GLAccountCode      string
	SequenceBackend    string // postgres (default), redis, memory
	SequenceStart      int64  // first value for the memory and redis sequences
	SequenceName       string // postgres sequence name
	SequenceKey        string // redis key
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with OCR_ prefix (e.g., OCR_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("OCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set as a viper default so a config file can still clear it.
	v.SetDefault("ingest.schema", "tenant_data")

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			UseSSL:       v.GetBool("storage.use_ssl"),
		},
		Ingest: IngestConfig{
			Schema:             v.GetString("ingest.schema"),
			CreatedBy:          v.GetString("ingest.created_by"),
			ExternalSystem:     v.GetString("ingest.external_system"),
			DefaultCurrency:    v.GetString("ingest.default_currency"),
			LeadDays:           v.GetInt("ingest.lead_days"),
			DefaultCountryCode: v.GetString("ingest.default_country_code"),
			DefaultStateCode:   v.GetString("ingest.default_state_code"),
			CostCenterCode:     v.GetString("ingest.cost_center_code"),
			ProfitCenterCode:   v.GetString("ingest.profit_center_code"),
			ProjectCode:        v.GetString("ingest.project_code"),
			PlantCode:          v.GetString("ingest.plant_code"),
			GLAccountCode:      v.GetString("ingest.gl_account_code"),
			SequenceBackend:    v.GetString("ingest.sequence_backend"),
			SequenceStart:      v.GetInt64("ingest.sequence_start"),
			SequenceName:       v.GetString("ingest.sequence_name"),
			SequenceKey:        v.GetString("ingest.sequence_key"),
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
		cfg.App.Name = "ocr-data-insertion"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
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
		cfg.Database.DBName = "procurement"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "ap-south-1"
	}

	in := &cfg.Ingest
	if in.CreatedBy == "" {
		in.CreatedBy = "OCR_AUTOMATION"
	}
	if in.ExternalSystem == "" {
		in.ExternalSystem = "OCR_SYSTEM"
	}
	if in.DefaultCurrency == "" {
		in.DefaultCurrency = "INR"
	}
	if in.LeadDays == 0 {
		in.LeadDays = 14
	}
	if in.DefaultCountryCode == "" {
		in.DefaultCountryCode = "IN"
	}
	if in.DefaultStateCode == "" {
		in.DefaultStateCode = "29"
	}
	if in.CostCenterCode == "" {
		in.CostCenterCode = "CC-OCR-DEFAULT"
	}
	if in.ProfitCenterCode == "" {
		in.ProfitCenterCode = "PC-OCR-DEFAULT"
	}
	if in.ProjectCode == "" {
		in.ProjectCode = "PRJ-OCR-DEFAULT"
	}
	if in.PlantCode == "" {
		in.PlantCode = "PLT-OCR-DEFAULT"
	}
	if in.GLAccountCode == "" {
		in.GLAccountCode = "GL-OCR-GRIR"
	}
	if in.SequenceBackend == "" {
		in.SequenceBackend = SequencePostgres
	}
	if in.SequenceStart == 0 {
		in.SequenceStart = 1
	}
	if in.SequenceName == "" {
		in.SequenceName = "grn_number_seq"
	}
	if in.SequenceKey == "" {
		in.SequenceKey = "ocr:grn:sequence"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
		if c.Ingest.SequenceBackend == SequenceMemory {
			return fmt.Errorf("ingest.sequence_backend=memory is not allowed in production (GRN numbers would repeat across runs)")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Ingest.Schema != "" && !identifierPattern.MatchString(c.Ingest.Schema) {
		return fmt.Errorf("ingest.schema %q is not a valid SQL identifier", c.Ingest.Schema)
	}
	if !identifierPattern.MatchString(c.Ingest.SequenceName) {
		return fmt.Errorf("ingest.sequence_name %q is not a valid SQL identifier", c.Ingest.SequenceName)
	}
	switch c.Ingest.SequenceBackend {
	case SequenceMemory, SequencePostgres, SequenceRedis:
	default:
		return fmt.Errorf("ingest.sequence_backend must be one of memory, postgres, redis; got %q", c.Ingest.SequenceBackend)
	}
	if c.Ingest.LeadDays < 0 {
		return fmt.Errorf("ingest.lead_days cannot be negative")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
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
