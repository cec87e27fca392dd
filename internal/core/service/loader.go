package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// maxLoggedRejections caps per-value WARN lines for one load.
const maxLoggedRejections = 20

// BatchLoader inserts a dataset in fixed-size batches, one transaction per batch.
// Batches run sequentially in row order. The first failing batch stops the load;
// batches committed before it are kept.
type BatchLoader struct {
	auditor port.Auditor
	logger  *slog.Logger
	tracer  trace.Tracer
	inst    port.Instrumentation
}

func NewBatchLoader(auditor port.Auditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *BatchLoader {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &BatchLoader{auditor: auditor, logger: logger, tracer: tracer, inst: inst}
}

// Load writes ds into schema's table through st. The returned LoadResult is always
// non-nil once preprocessing succeeded, and carries the partial outcome when a
// batch fails; the error is the same as LoadResult.Err.
func (l *BatchLoader) Load(ctx context.Context, st port.Store, ds *domain.Dataset, schema *domain.TableSchema, batchSize int) (*domain.LoadResult, error) {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	runID := RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = WithRunID(ctx, runID)
	}

	ctx, span := l.tracer.Start(ctx, "BatchLoader.Load",
		trace.WithAttributes(
			attribute.String("db.system", st.Dialect()),
			attribute.String("db.collection.name", schema.Name),
			attribute.String("load.run_id", runID),
			attribute.Int("load.batch_size", batchSize),
		),
	)
	defer span.End()

	prepared, err := domain.PrepareRows(ds, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	l.logRejections(ctx, schema.Name, prepared.Rejected)

	result := &domain.LoadResult{
		RunID:     runID,
		Table:     schema.Name,
		Attempted: len(prepared.Rows),
		Batches:   []domain.BatchResult{},
		Rejected:  prepared.Rejected,
	}

	for _, b := range domain.Partition(len(prepared.Rows), batchSize) {
		br := l.loadBatch(ctx, st, schema.Name, prepared.Columns, prepared.Rows[b.Offset:b.Offset+b.Size], b)
		result.Batches = append(result.Batches, br)
		if br.Err != nil {
			result.Err = br.Err
			break
		}
		result.Committed += br.Committed
	}

	span.SetAttributes(
		attribute.Int("load.rows.attempted", result.Attempted),
		attribute.Int("load.rows.committed", result.Committed),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		l.logger.ErrorContext(ctx, "load stopped",
			slog.String("load.run_id", runID),
			slog.String("db.table", schema.Name),
			slog.Int("load.rows.committed", result.Committed),
			slog.Int("load.rows.attempted", result.Attempted),
			slog.String("error", result.Err.Error()),
		)
		return result, result.Err
	}

	l.logger.InfoContext(ctx, "load complete",
		slog.String("load.run_id", runID),
		slog.String("db.table", schema.Name),
		slog.Int("load.rows", result.Committed),
		slog.Int("load.batches", len(result.Batches)),
	)
	return result, nil
}

func (l *BatchLoader) loadBatch(ctx context.Context, st port.Store, table string, columns []string, rows [][]any, b domain.Batch) domain.BatchResult {
	ctx, span := l.tracer.Start(ctx, "BatchLoader.batch",
		trace.WithAttributes(
			attribute.Int("load.batch", b.Index),
			attribute.Int("load.batch.offset", b.Offset),
			attribute.Int("load.batch.size", b.Size),
		),
	)
	defer span.End()

	start := time.Now()
	_, err := st.InsertBatch(ctx, table, columns, rows)
	elapsed := time.Since(start)

	br := domain.BatchResult{Index: b.Index, Offset: b.Offset, Attempted: b.Size, Duration: elapsed}
	l.inst.IncrementBatches(ctx, table)
	l.inst.RecordBatchDuration(ctx, table, float64(elapsed.Milliseconds()))

	if err != nil {
		br.Err = fmt.Errorf("%w: batch %d (rows %d-%d): %w", domain.ErrBatchInsert, b.Index, b.Offset, b.Offset+b.Size-1, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.inst.IncrementBatchFailures(ctx, table)
	} else {
		br.Committed = b.Size
		l.inst.AddLoadedRows(ctx, table, int64(b.Size))
	}

	l.auditor.Record(ctx, port.AuditEntry{
		RunID:      RunIDFromContext(ctx),
		Operation:  operationFromCtx(ctx, "load"),
		Table:      table,
		Batch:      b.Index + 1,
		Rows:       br.Committed,
		DurationMS: elapsed.Milliseconds(),
		Err:        br.Err,
	})
	l.logger.DebugContext(ctx, "batch done",
		slog.String("db.table", table),
		slog.Int("load.batch", b.Index),
		slog.Int("load.rows", br.Committed),
		slog.Duration("duration", elapsed),
	)
	return br
}

func (l *BatchLoader) logRejections(ctx context.Context, table string, rejected []domain.Rejection) {
	for i, r := range rejected {
		if i == maxLoggedRejections {
			l.logger.WarnContext(ctx, "further rejected values not logged",
				slog.String("db.table", table),
				slog.Int("rejected", len(rejected)),
			)
			return
		}
		l.logger.WarnContext(ctx, "value rejected, stored as NULL",
			slog.String("db.table", table),
			slog.String("db.column", r.Column),
			slog.Int("row", r.Row),
			slog.String("special_type", string(r.Type)),
			slog.String("value", r.Value),
		)
	}
}
