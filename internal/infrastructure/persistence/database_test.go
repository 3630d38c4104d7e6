package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"

	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/telemetry"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T, opts ...Option) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	db, err := Open(dialector, opts...)
	require.NoError(t, err)

	return db, mock, mockDB
}

func TestOpen(t *testing.T) {
	t.Run("enables error translation", func(t *testing.T) {
		db, _, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		assert.True(t, db.DB.Config.TranslateError)
		assert.True(t, db.DB.Config.SkipDefaultTransaction)
	})

	t.Run("accepts zap logger and disabled tracing", func(t *testing.T) {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), zaptest.NewLogger(t))
		db, mock, mockDB := newMockDatabase(t,
			WithLogger(zaptest.NewLogger(t), gormlogger.Info),
			WithSlowThreshold(50*time.Millisecond),
			WithBindValues(true),
			WithTracing(plugin),
		)
		defer mockDB.Close()

		mock.ExpectExec(`DELETE FROM s_plant WHERE s_plant_code = \$1`).
			WithArgs("PLT-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := db.Executor().Execute(t.Context(), "DELETE FROM s_plant WHERE s_plant_code = ?", "PLT-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDatabase_Stats tests the Stats method
func TestDatabase_Stats(t *testing.T) {
	t.Run("returns ConnectionStats from underlying DB", func(t *testing.T) {
		db, _, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		stats, err := db.Stats()
		assert.NoError(t, err)
		assert.IsType(t, ConnectionStats{}, stats)
	})
}

// TestDatabase_Ping tests the Ping method
func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		err := db.Ping()
		assert.NoError(t, err)
	})
}

// TestDatabase_Close tests the Close method
func TestDatabase_Close(t *testing.T) {
	t.Run("successful close", func(t *testing.T) {
		db, mock, _ := newMockDatabase(t)

		mock.ExpectClose()

		err := db.Close()
		assert.NoError(t, err)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}
