package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider owns the OTLP metrics pipeline. A disabled provider hands
// out meters from the global no-op provider, so instruments can always be
// registered.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider starts a periodic OTLP export when cfg.Enabled is set.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Debug("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)
	logger.Info("Exporting invoice metrics",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown pushes the last collection and stops the exporter.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Metric attribute keys.
const (
	AttrStatus = attribute.Key("status")
	AttrEntity = attribute.Key("entity")
)

// Processing outcomes used as the status attribute.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ProcessingDurationBuckets are the per-invoice latency buckets, in seconds.
// One invoice is a few dozen statements, so most land below a second.
var ProcessingDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// InvoiceMetrics records the outcome of invoice processing. All methods
// are no-ops on a nil receiver, so callers need not check whether metrics
// are configured.
type InvoiceMetrics struct {
	processed  metric.Int64Counter
	poReused   metric.Int64Counter
	masterRows metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewInvoiceMetrics registers the invoice instruments on meter.
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		m    InvoiceMetrics
		errs []error
		err  error
	)
	m.processed, err = meter.Int64Counter("ocr_invoices_processed_total",
		metric.WithDescription("Invoices processed, by outcome"), metric.WithUnit("{invoice}"))
	errs = append(errs, err)
	m.poReused, err = meter.Int64Counter("ocr_po_reused_total",
		metric.WithDescription("Invoices that referenced an already stored purchase order"), metric.WithUnit("{invoice}"))
	errs = append(errs, err)
	m.masterRows, err = meter.Int64Counter("ocr_master_rows_created_total",
		metric.WithDescription("Master data rows inserted, by entity"), metric.WithUnit("{row}"))
	errs = append(errs, err)
	m.duration, err = meter.Float64Histogram("ocr_invoice_processing_duration_seconds",
		metric.WithDescription("End to end processing time of one invoice"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ProcessingDurationBuckets...))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("register invoice metrics: %w", err)
	}
	return &m, nil
}

// RecordProcessed counts one invoice with its status and duration.
func (m *InvoiceMetrics) RecordProcessed(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrStatus.String(status))
	m.processed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordPOReused counts an invoice whose PO already existed.
func (m *InvoiceMetrics) RecordPOReused(ctx context.Context) {
	if m == nil {
		return
	}
	m.poReused.Add(ctx, 1)
}

// RecordMasterCreated counts inserted master rows per entity kind.
func (m *InvoiceMetrics) RecordMasterCreated(ctx context.Context, created map[string]int) {
	if m == nil {
		return
	}
	for entity, n := range created {
		if n > 0 {
			m.masterRows.Add(ctx, int64(n), metric.WithAttributes(AttrEntity.String(entity)))
		}
	}
}
