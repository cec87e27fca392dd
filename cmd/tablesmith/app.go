package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/tablesmith/internal/adapter/bitable"
	"github.com/guillermoBallester/tablesmith/internal/adapter/configfile"
	"github.com/guillermoBallester/tablesmith/internal/adapter/dataset"
	_ "github.com/guillermoBallester/tablesmith/internal/adapter/mysql"
	"github.com/guillermoBallester/tablesmith/internal/adapter/policy"
	_ "github.com/guillermoBallester/tablesmith/internal/adapter/postgres"
	_ "github.com/guillermoBallester/tablesmith/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablesmith/internal/adapter/store"
	"github.com/guillermoBallester/tablesmith/internal/audit"
	"github.com/guillermoBallester/tablesmith/internal/config"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"
	"github.com/guillermoBallester/tablesmith/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// app holds the wired adapters and services for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store   port.Store // nil when offline
	configs *configfile.Repository
	ingest  *service.IngestService
	query   *service.QueryService
	export  *service.ExportService // nil without sink credentials

	tracer trace.Tracer
	inst   port.Instrumentation

	auditor   port.Auditor
	telemetry *telemetry.Provider
}

// newApp connects to the destination and wires adapters -> domain -> services.
// An offline app has no store; only its config repository and the inference
// half of the ingest service are usable.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, offline bool) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracer:  telemetry.NoopTracer(),
		inst:    telemetry.NoopInstruments(),
		auditor: audit.NoopAuditor{},
	}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close(context.Background())
		}
	}()

	var err error

	if cfg.OTelEnabled {
		a.telemetry, err = telemetry.Init(ctx, telemetry.Options{
			ServiceName: "tablesmith",
			Version:     version,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.tracer = a.telemetry.Tracer()
		a.inst = a.telemetry.Instruments()
		logger.Info("telemetry enabled", slog.Float64("otel.sample_ratio", cfg.OTelSampleRatio))
	}

	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	var policies port.PolicySource = port.NoopPolicy{}
	if cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		policies = pol
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	if !offline {
		if a.store, err = store.Open(ctx, cfg.Driver, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("%w: connecting to %s: %w", domain.ErrConnection, cfg.Driver, err)
		}
		logger.Info("database connected",
			slog.String("db.system", cfg.Driver),
			slog.String("db.url", redactDSN(cfg.DatabaseURL)),
		)
	}

	// Domain
	detector := domain.Detector{Threshold: cfg.SpecialTypeThreshold, SampleSize: cfg.SampleSize}
	if err := detector.Validate(); err != nil {
		return nil, err
	}

	// Services
	a.configs = configfile.NewRepository(cfg.ConfigDir)
	a.ingest = service.NewIngestService(service.IngestDeps{
		Store:     a.store,
		Configs:   a.configs,
		Policies:  policies,
		Reader:    dataset.NewReader(),
		Builder:   service.NewConfigBuilder(detector, domain.InferOptions{SinglePrecisionFloats: cfg.SinglePrecisionFloats}, logger),
		Migrator:  service.NewSchemaMigrator(logger, a.tracer),
		Loader:    service.NewBatchLoader(a.auditor, logger, a.tracer, a.inst),
		BatchSize: cfg.BatchSize,
		Logger:    logger,
		Tracer:    a.tracer,
	})
	if offline {
		ready = true
		return a, nil
	}

	a.query = service.NewQueryService(a.store, domain.NewOrderByValidator(), a.configs, policies, a.auditor,
		logger, a.tracer, a.inst, service.QueryOptions{
			MaxRows: cfg.MaxRows,
			Timeout: cfg.QueryTimeout,
			MaskPII: cfg.MaskPII,
		})

	if cfg.Bitable.Configured() {
		sink, err := bitable.New(bitable.Options{
			AppID:     cfg.Bitable.AppID,
			AppSecret: cfg.Bitable.AppSecret,
			AppToken:  cfg.Bitable.AppToken,
			BaseURL:   cfg.Bitable.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring bitable sink: %w", err)
		}
		a.export = service.NewExportService(a.query, a.configs, sink, logger)
	}
	ready = true
	return a, nil
}

// Close releases the store, the audit log and the telemetry providers.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.auditor != nil {
		errs = append(errs, a.auditor.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
