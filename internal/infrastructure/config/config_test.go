package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the tests touch. Empty values are ignored
// by viper, so t.Setenv("", ...) behaves as unset and is restored afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OCR_APP_NAME", "OCR_APP_ENV",
		"OCR_DATABASE_HOST", "OCR_DATABASE_PORT", "OCR_DATABASE_PASSWORD", "OCR_DATABASE_SSLMODE",
		"OCR_DATABASE_MAX_OPEN_CONNS", "OCR_DATABASE_MAX_IDLE_CONNS",
		"OCR_TELEMETRY_SAMPLING_RATIO", "OCR_TELEMETRY_DB_LOG_FULL_SQL",
		"OCR_INGEST_SCHEMA", "OCR_INGEST_SEQUENCE_BACKEND", "OCR_INGEST_LEAD_DAYS",
		"OCR_INGEST_DEFAULT_CURRENCY", "OCR_INGEST_SEQUENCE_NAME", "OCR_STORAGE_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ocr-data-insertion", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "procurement", cfg.Database.DBName)
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.DBSlowQueryThresh)
		assert.Equal(t, "ocr-data-insertion", cfg.Telemetry.ServiceName)

		in := cfg.Ingest
		assert.Equal(t, "tenant_data", in.Schema)
		assert.Equal(t, "OCR_AUTOMATION", in.CreatedBy)
		assert.Equal(t, "OCR_SYSTEM", in.ExternalSystem)
		assert.Equal(t, "INR", in.DefaultCurrency)
		assert.Equal(t, 14, in.LeadDays)
		assert.Equal(t, "IN", in.DefaultCountryCode)
		assert.Equal(t, SequencePostgres, in.SequenceBackend)
		assert.Equal(t, int64(1), in.SequenceStart)
		assert.Equal(t, "grn_number_seq", in.SequenceName)
	})

	t.Run("loads values from environment variables with OCR prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_APP_NAME", "ingest-test")
		t.Setenv("OCR_DATABASE_HOST", "testdb.local")
		t.Setenv("OCR_DATABASE_PORT", "5433")
		t.Setenv("OCR_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("OCR_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("OCR_INGEST_SCHEMA", "acme_tenant")
		t.Setenv("OCR_INGEST_SEQUENCE_BACKEND", "redis")
		t.Setenv("OCR_INGEST_LEAD_DAYS", "21")
		t.Setenv("OCR_STORAGE_BUCKET", "invoices")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ingest-test", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "acme_tenant", cfg.Ingest.Schema)
		assert.Equal(t, SequenceRedis, cfg.Ingest.SequenceBackend)
		assert.Equal(t, 21, cfg.Ingest.LeadDays)
		assert.Equal(t, "invoices", cfg.Storage.Bucket)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("OCR_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects schema that is not an identifier", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_INGEST_SCHEMA", "tenant; DROP TABLE x")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ingest.schema")
	})

	t.Run("rejects unknown sequence backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_INGEST_SEQUENCE_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ingest.sequence_backend")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("reads toml file and clears schema", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "ingest.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[database]
host = "db.internal"

[ingest]
schema = ""
default_currency = "USD"
project_code = "PRJ-42"
`), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "", cfg.Ingest.Schema)
		assert.Equal(t, "USD", cfg.Ingest.DefaultCurrency)
		assert.Equal(t, "PRJ-42", cfg.Ingest.ProjectCode)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "ingest.toml")
		require.NoError(t, os.WriteFile(path, []byte("[ingest]\ndefault_currency = \"USD\"\n"), 0o600))
		t.Setenv("OCR_INGEST_DEFAULT_CURRENCY", "EUR")

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "EUR", cfg.Ingest.DefaultCurrency)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OCR_APP_ENV", "production")
		t.Setenv("OCR_DATABASE_PASSWORD", "secure-password")
		t.Setenv("OCR_DATABASE_SSLMODE", "require")
		t.Setenv("OCR_INGEST_SEQUENCE_BACKEND", "postgres")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("OCR_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("OCR_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects memory sequence in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("OCR_INGEST_SEQUENCE_BACKEND", "memory")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sequence_backend=memory")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("OCR_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
