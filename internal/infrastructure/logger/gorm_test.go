package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const selectSupplier = "SELECT id FROM tenant_data.s_supplier WHERE s_supplier_code = $1"

func newObservedGormLogger(level zapcore.Level, gormLevel gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return NewGormLogger(zap.New(core), gormLevel, opts...), recorded
}

func TestNewGormLogger(t *testing.T) {
	gl, _ := newObservedGormLogger(zapcore.InfoLevel, gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithBindValues(true),
	)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.True(t, gl.logValues)

	var _ gormlogger.Interface = gl
	var _ gorm.ParamsFilter = gl

	assert.NotNil(t, NewGormLogger(nil, gormlogger.Warn))
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(zapcore.InfoLevel, gormlogger.Info)
	changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, gormlogger.Warn, changed.level)
}

func TestGormLogger_ParamsFilter(t *testing.T) {
	params := []any{"SUP-CB73304E618E", "36ABCDE1234F1Z5"}

	hidden, _ := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Info)
	sql, vars := hidden.ParamsFilter(context.Background(), selectSupplier, params...)
	assert.Equal(t, selectSupplier, sql)
	assert.Nil(t, vars)

	shown, _ := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Info, WithBindValues(true))
	_, vars = shown.ParamsFilter(context.Background(), selectSupplier, params...)
	assert.Equal(t, params, vars)
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Info)
	ctx := context.Background()

	gl.Info(ctx, "migrated %d tables", 18)
	gl.Warn(ctx, "warn")
	gl.Error(ctx, "error")

	logs := recorded.All()
	require.Len(t, logs, 3)
	assert.Equal(t, "migrated 18 tables", logs[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)

	silent, recordedSilent := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Silent)
	silent.Info(ctx, "x")
	silent.Error(ctx, "x")
	assert.Empty(t, recordedSilent.All())
}

func TestGormLogger_Trace(t *testing.T) {
	fc := func() (string, int64) { return selectSupplier, 1 }

	t.Run("error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.ErrorLevel, gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), fc, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "Statement failed", logs[0].Message)
		assert.Equal(t, "connection reset", logs[0].ContextMap()["error"])
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.ErrorLevel, gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("slow statement", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.WarnLevel, gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "Slow statement", logs[0].Message)
		assert.Contains(t, logs[0].ContextMap(), "threshold")
	})

	t.Run("zero threshold disables slow warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.WarnLevel, gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now().Add(-time.Hour), fc, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("statement at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Info)
		gl.Trace(context.Background(), time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "Statement", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("silent", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), fc, errors.New("ignored"))
		assert.Empty(t, recorded.All())
	})

	t.Run("tags invoice and run", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(zapcore.DebugLevel, gormlogger.Info)
		ctx := context.WithValue(context.Background(), InvoiceKey, "INV-42")
		ctx = context.WithValue(ctx, RunIDKey, "run-7")

		gl.Trace(ctx, time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		fields := fieldMap(logs[0])
		assert.Equal(t, "INV-42", fields["invoice_no"])
		assert.Equal(t, "run-7", fields["run_id"])
		assert.Equal(t, selectSupplier, fields["sql"])
		assert.EqualValues(t, 1, logs[0].ContextMap()["rows"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"debug", gormlogger.Info},
		{"info", gormlogger.Warn},
		{"warn", gormlogger.Warn},
		{"error", gormlogger.Error},
		{"silent", gormlogger.Silent},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
