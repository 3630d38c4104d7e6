package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(entry observer.LoggedEntry) map[string]string {
	out := map[string]string{}
	for _, f := range entry.Context {
		out[f.Key] = f.String
	}
	return out
}

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRunIDTenantInvoice(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := context.Background()

	ctx, l := WithRunID(ctx, zap.New(core), "run-1")
	ctx, l = WithTenant(ctx, l, "tenant_data")
	ctx, l = WithInvoice(ctx, l, "INV-7")

	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Equal(t, "tenant_data", stringValue(ctx, TenantKey))
	assert.Equal(t, "INV-7", stringValue(ctx, InvoiceKey))

	l.Info("hello")
	require.Len(t, recorded.All(), 1)
	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "tenant_data", fields["tenant"])
	assert.Equal(t, "INV-7", fields["invoice_no"])
}

func TestWithValue_NilLoggerUsesContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	ctx, _ = WithInvoice(ctx, nil, "INV-1")
	FromContext(ctx).Info("x")
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "INV-1", fieldMap(recorded.All()[0])["invoice_no"])
}

func TestGetters_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, stringValue(ctx, InvoiceKey))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}

func TestTraceIDs_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, span.SpanContext().SpanID().String(), GetSpanID(ctx))
}

func TestContextLogger(t *testing.T) {
	t.Run("injects trace and context fields", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		ctx := WithContext(context.Background(), zap.New(core))
		ctx = context.WithValue(ctx, InvoiceKey, "INV-9")
		ctx, span := tp.Tracer("test").Start(ctx, "op")
		defer span.End()

		L(ctx).Info("processed", zap.Int("lines", 2))

		require.Len(t, recorded.All(), 1)
		fields := fieldMap(recorded.All()[0])
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.NotEmpty(t, fields["span_id"])
		assert.Equal(t, "INV-9", fields["invoice_no"])
	})

	t.Run("levels", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		cl := WithLogger(context.Background(), zap.New(core))

		cl.Debug("d")
		cl.Info("i")
		cl.Warn("w")
		cl.Error("e")

		entries := recorded.All()
		require.Len(t, entries, 4)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	})

	t.Run("with adds fields", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		cl := WithLogger(context.Background(), zap.New(core)).With(zap.String("po_number", "PO-1"))

		cl.Zap().Info("x")
		require.Len(t, recorded.All(), 1)
		assert.Equal(t, "PO-1", fieldMap(recorded.All()[0])["po_number"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		cl := WithLogger(context.Background(), nil)
		assert.NotPanics(t, func() {
			cl.Info("x")
			cl.With(zap.String("k", "v")).Warn("y")
		})
	})
}

func TestWithTrace(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, enriched := WithInvoice(context.Background(), base, "INV-3")
	WithTrace(ctx, enriched).Info("no span")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()
	WithTrace(ctx, enriched).Info("in span")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, fieldMap(entries[0]), "trace_id")
	assert.Len(t, entries[0].Context, 1, "invoice field is not repeated")

	fields := fieldMap(entries[1])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, "INV-3", fields["invoice_no"])
	assert.Len(t, entries[1].Context, 3)

	assert.NotNil(t, WithTrace(ctx, nil))
}
