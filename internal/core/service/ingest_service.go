package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// LoadRequest parameterizes infer-and-load.
type LoadRequest struct {
	Table string
	// Replace drops and recreates an existing table.
	Replace bool
	// BatchSize overrides the configured rows per transaction when positive.
	BatchSize int
	// Regenerate re-infers the config even when one is persisted.
	Regenerate bool
}

// InferReport describes a resolved config.
type InferReport struct {
	Table       string              `json:"table"`
	ConfigPath  string              `json:"config_path"`
	Reused      bool                `json:"reused"`
	Renamed     map[string]string   `json:"renamed,omitempty"`
	Ambiguous   []string            `json:"ambiguous,omitempty"`
	IndexIssues []domain.IndexIssue `json:"index_issues,omitempty"`
	Config      *domain.Config      `json:"config"`
}

// IngestReport is the outcome of infer-and-load.
type IngestReport struct {
	RunID     string             `json:"run_id"`
	Infer     *InferReport       `json:"infer"`
	Migration *MigrationOutcome  `json:"migration,omitempty"`
	Load      *domain.LoadResult `json:"load,omitempty"`
}

// IngestService drives the full pipeline:
// dataset -> config (reused or inferred) -> migration -> batched load.
type IngestService struct {
	store     port.Store
	configs   port.ConfigRepository
	policies  port.PolicySource
	reader    port.DatasetReader
	builder   *ConfigBuilder
	migrator  *SchemaMigrator
	loader    *BatchLoader
	batchSize int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// IngestDeps groups the collaborators of IngestService.
type IngestDeps struct {
	Store     port.Store
	Configs   port.ConfigRepository
	Policies  port.PolicySource
	Reader    port.DatasetReader
	Builder   *ConfigBuilder
	Migrator  *SchemaMigrator
	Loader    *BatchLoader
	BatchSize int
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

func NewIngestService(d IngestDeps) *IngestService {
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if d.Policies == nil {
		d.Policies = port.NoopPolicy{}
	}
	if d.BatchSize <= 0 {
		d.BatchSize = domain.DefaultBatchSize
	}
	return &IngestService{
		store:     d.Store,
		configs:   d.Configs,
		policies:  d.Policies,
		reader:    d.Reader,
		builder:   d.Builder,
		migrator:  d.Migrator,
		loader:    d.Loader,
		batchSize: d.BatchSize,
		logger:    d.Logger,
		tracer:    d.Tracer,
	}
}

// ReadFile reads a dataset through the configured reader.
func (s *IngestService) ReadFile(ctx context.Context, path string, opts port.ReadOptions) (*domain.Dataset, error) {
	if s.reader == nil {
		return nil, errors.New("no dataset reader configured")
	}
	return s.reader.Read(ctx, path, opts)
}

// InferConfig resolves the config for table without touching the destination.
// A persisted config is reused unless regenerate is set, so manual edits survive.
func (s *IngestService) InferConfig(ctx context.Context, ds *domain.Dataset, table string, regenerate bool) (*InferReport, error) {
	table = TableName(table)
	report := &InferReport{Table: table, ConfigPath: s.configs.Location(table)}
	report.Renamed = ds.RenameReserved()
	for from, to := range report.Renamed {
		s.logger.InfoContext(ctx, "source column renamed",
			slog.String("db.table", table),
			slog.String("from", from),
			slog.String("to", to),
		)
	}

	if !regenerate {
		cfg, err := s.configs.Load(ctx, table)
		switch {
		case err == nil:
			s.logger.InfoContext(ctx, "reusing persisted config",
				slog.String("db.table", table),
				slog.String("config.path", report.ConfigPath),
			)
			report.Reused = true
			report.Config = cfg
			return report, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("loading config for %q: %w", table, err)
		}
	}

	pol, _ := s.policies.TablePolicy(table)
	res, err := s.builder.Build(ctx, ds, table, pol)
	if err != nil {
		return nil, err
	}
	if err := s.configs.Save(ctx, res.Config); err != nil {
		return nil, fmt.Errorf("saving config for %q: %w", table, err)
	}
	report.Config = res.Config
	report.Ambiguous = res.Ambiguous
	report.IndexIssues = res.IndexIssues
	return report, nil
}

// InferAndLoad resolves the config, migrates the destination table and loads ds.
// On a batch failure the report carries the partial LoadResult alongside the error.
func (s *IngestService) InferAndLoad(ctx context.Context, ds *domain.Dataset, req LoadRequest) (*IngestReport, error) {
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)

	ctx, span := s.tracer.Start(ctx, "IngestService.InferAndLoad",
		trace.WithAttributes(
			attribute.String("load.run_id", runID),
			attribute.String("db.collection.name", TableName(req.Table)),
			attribute.Bool("migrate.replace", req.Replace),
		),
	)
	defer span.End()

	report := &IngestReport{RunID: runID}
	fail := func(err error) (*IngestReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	infer, err := s.InferConfig(ctx, ds, req.Table, req.Regenerate)
	if err != nil {
		return fail(err)
	}
	report.Infer = infer

	schema := infer.Config.Schema()
	plan, issues := domain.PlanIndexes(schema, infer.Config.IndexIntents())
	for _, issue := range issues {
		s.logger.WarnContext(ctx, "index definition skipped",
			slog.String("db.table", schema.Name),
			slog.String("error", issue.Error()),
		)
	}

	outcome, err := s.migrator.Migrate(ctx, s.store, schema, plan, req.Replace)
	if err != nil {
		return fail(err)
	}
	report.Migration = outcome
	if sev := domain.MaxSeverity(outcome.Drift); sev == domain.SeverityBlock {
		s.logger.WarnContext(ctx, "existing table has blocking drift, load may fail",
			slog.String("db.table", schema.Name),
		)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	res, err := s.loader.Load(ctx, s.store, ds, schema, batchSize)
	report.Load = res
	if err != nil {
		return fail(err)
	}
	return report, nil
}

// TableName normalizes a caller supplied table name, falling back to the default.
func TableName(name string) string {
	if n := domain.NormalizeColumnName(name); n != "" {
		return n
	}
	return domain.DefaultTableName
}
