package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// MigrationState is the terminal state of a migration.
type MigrationState string

const (
	StateCreated  MigrationState = "created"
	StateReused   MigrationState = "reused"
	StateReplaced MigrationState = "replaced"
)

// MigrationOutcome reports what the migrator did to the destination table.
type MigrationOutcome struct {
	Table          string              `json:"table"`
	State          MigrationState      `json:"state"`
	IndexesCreated []string            `json:"indexes_created,omitempty"`
	IndexFailures  []domain.IndexIssue `json:"index_failures,omitempty"`
	Drift          []domain.Drift      `json:"drift,omitempty"`
}

// SchemaMigrator reconciles a TableSchema with the live destination.
//
//	Absent           -> Created
//	Present          -> Reused (drift reported, table untouched)
//	Present, replace -> Dropped -> Created
type SchemaMigrator struct {
	logger *slog.Logger
	tracer trace.Tracer
}

func NewSchemaMigrator(logger *slog.Logger, tracer trace.Tracer) *SchemaMigrator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &SchemaMigrator{logger: logger, tracer: tracer}
}

// Migrate runs the state machine against st. Replace is destructive: existing rows
// and indexes are dropped before recreation. Index DDL failures are logged and
// skipped; table DDL failures abort.
func (m *SchemaMigrator) Migrate(ctx context.Context, st port.Store, schema *domain.TableSchema, plan domain.IndexPlan, replace bool) (*MigrationOutcome, error) {
	ctx, span := m.tracer.Start(ctx, "SchemaMigrator.Migrate",
		trace.WithAttributes(
			attribute.String("db.system", st.Dialect()),
			attribute.String("db.collection.name", schema.Name),
			attribute.Bool("migrate.replace", replace),
		),
	)
	defer span.End()

	fail := func(err error) (*MigrationOutcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := st.Ping(ctx); err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrConnection, err))
	}

	exists, err := st.TableExists(ctx, schema.Name)
	if err != nil {
		return fail(fmt.Errorf("checking table %q: %w", schema.Name, err))
	}

	out := &MigrationOutcome{Table: schema.Name, State: StateCreated}
	switch {
	case exists && !replace:
		live, err := st.LiveColumns(ctx, schema.Name)
		if err != nil {
			return fail(fmt.Errorf("reading columns of %q: %w", schema.Name, err))
		}
		out.State = StateReused
		out.Drift = domain.DiffColumns(schema, live, st.NativeType)
		m.logger.InfoContext(ctx, "reusing existing table",
			slog.String("db.table", schema.Name),
			slog.String("reason", domain.ErrSchemaConflict.Error()),
			slog.Int("drift", len(out.Drift)),
		)
		for _, d := range out.Drift {
			m.logger.WarnContext(ctx, "schema drift",
				slog.String("db.table", schema.Name),
				slog.String("drift.kind", string(d.Kind)),
				slog.String("drift.severity", string(d.Severity)),
				slog.String("db.column", d.Column),
				slog.String("drift.expected", d.Expected),
				slog.String("drift.actual", d.Actual),
			)
		}
		span.SetAttributes(attribute.String("migrate.state", string(out.State)))
		return out, nil

	case exists && replace:
		if err := st.DropTable(ctx, schema.Name); err != nil {
			return fail(fmt.Errorf("dropping table %q: %w", schema.Name, err))
		}
		out.State = StateReplaced
		m.logger.WarnContext(ctx, "dropped existing table", slog.String("db.table", schema.Name))
	}

	if err := st.CreateTable(ctx, schema); err != nil {
		return fail(fmt.Errorf("creating table %q: %w", schema.Name, err))
	}

	for _, spec := range plan.Specs(schema) {
		if err := st.CreateIndex(ctx, spec); err != nil {
			issue := domain.IndexIssue{Kind: spec.Kind, Columns: indexColumnNames(spec), Reason: err.Error()}
			out.IndexFailures = append(out.IndexFailures, issue)
			m.logger.WarnContext(ctx, "index creation failed",
				slog.String("db.table", schema.Name),
				slog.String("db.index", spec.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		out.IndexesCreated = append(out.IndexesCreated, spec.Name)
	}

	m.logger.InfoContext(ctx, "table migrated",
		slog.String("db.table", schema.Name),
		slog.String("migrate.state", string(out.State)),
		slog.Int("indexes", len(out.IndexesCreated)),
	)
	span.SetAttributes(attribute.String("migrate.state", string(out.State)))
	return out, nil
}

func indexColumnNames(spec domain.IndexSpec) []string {
	out := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		out[i] = c.Name
	}
	return out
}
