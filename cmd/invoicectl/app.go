package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/application/invoice"
	"github.com/easyml-code/ocr-data-insertion/internal/application/mapping"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/docid"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/cache"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/config"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/logger"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/persistence"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/storage"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/telemetry"
)

const shutdownTimeout = 10 * time.Second

// app is the assembled ingestion pipeline plus everything that must be
// released when the command exits.
type app struct {
	processor *invoice.Processor
	source    storage.Source
	log       *zap.Logger
	closers   []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	a.closers = append(a.closers, tracer.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	a.closers = append(a.closers, meters.Shutdown)

	metrics, err := telemetry.NewInvoiceMetrics(meters.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("register invoice metrics: %w", err)
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithBindValues(cfg.Telemetry.DBLogFullSQL),
		persistence.WithTracing(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		if stats, err := db.Stats(); err == nil {
			log.Debug("Database pool",
				zap.Int("open", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait", stats.WaitDuration),
			)
		}
		return db.Close()
	})
	log.Info("Database connected", zap.String("schema", cfg.Ingest.Schema))

	exec := db.Executor()
	seq, err := a.sequence(ctx, cfg, exec)
	if err != nil {
		return nil, err
	}

	in := cfg.Ingest
	master := persistence.NewMasterDataRepository(exec, persistence.MasterDataConfig{
		Schema:             in.Schema,
		CreatedBy:          in.CreatedBy,
		DefaultCountryCode: in.DefaultCountryCode,
		DefaultStateCode:   in.DefaultStateCode,
	}, log)
	docs := persistence.NewDocumentStore(exec, persistence.DocumentStoreConfig{
		Schema:    in.Schema,
		CreatedBy: in.CreatedBy,
	}, log)

	resolver := mapping.NewResolver(mapping.MasterCodes{
		CostCenter:   in.CostCenterCode,
		ProfitCenter: in.ProfitCenterCode,
		Project:      in.ProjectCode,
		Plant:        in.PlantCode,
		GLAccount:    in.GLAccountCode,
	})
	mapper := mapping.NewMapper(resolver, mapping.Config{
		CreatedBy:       in.CreatedBy,
		ExternalSystem:  in.ExternalSystem,
		DefaultCurrency: in.DefaultCurrency,
		LeadDays:        in.LeadDays,
	}, mapping.WithLogger(log))

	a.processor = invoice.NewProcessor(mapper, invoice.NewOrchestrator(master, docs, log), seq, log)
	a.processor.SetMetrics(metrics)
	a.source = storage.NewConfiguredRouter(ctx, &cfg.Storage, log)
	return a, nil
}

// runContext tags ctx and its logger with a fresh run id and the tenant
// schema, so every line of one invocation can be correlated.
func runContext(ctx context.Context, cfg *config.Config, log *zap.Logger) context.Context {
	ctx, log = logger.WithRunID(ctx, log, uuid.NewString())
	ctx, _ = logger.WithTenant(ctx, log, cfg.Ingest.Schema)
	return ctx
}

// sequence builds the GRN sequence backend named by the configuration.
func (a *app) sequence(ctx context.Context, cfg *config.Config, exec persistence.QueryExecutor) (docid.SequenceSource, error) {
	in := cfg.Ingest
	switch in.SequenceBackend {
	case config.SequencePostgres:
		a.log.Info("Using database GRN sequence", zap.String("sequence", in.SequenceName))
		return persistence.NewPostgresSequence(exec, in.Schema, in.SequenceName), nil
	case config.SequenceRedis:
		client, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		seq := cache.NewRedisSequence(client, in.SequenceKey)
		if err := seq.Init(ctx, in.SequenceStart); err != nil {
			return nil, fmt.Errorf("initialize redis sequence: %w", err)
		}
		a.log.Info("Using redis GRN sequence", zap.String("key", in.SequenceKey), zap.String("addr", cfg.Redis.Addr()))
		return seq, nil
	default:
		a.log.Warn("Using in-memory GRN sequence; numbers are only unique within this run",
			zap.Int64("start", in.SequenceStart))
		return docid.NewMemorySequence(in.SequenceStart), nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Error("Error during shutdown", zap.Error(err))
	}
	_ = logger.Sync(a.log)
}
