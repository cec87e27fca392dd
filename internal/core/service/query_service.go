package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxRows caps query results when no limit is configured.
const DefaultMaxRows = 100

// QueryService answers read requests against loaded tables. Column names in
// conditions and ORDER BY are checked against the live table before any SQL is
// built; values are always bound as parameters.
type QueryService struct {
	store     port.Store
	orderBy   port.OrderByParser
	configs   port.ConfigRepository
	policies  port.PolicySource
	auditor   port.Auditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
	maxRows   int
	timeout   time.Duration
	piiMasked bool
}

// QueryOptions tunes QueryService.
type QueryOptions struct {
	MaxRows int
	Timeout time.Duration
	// MaskPII applies partial masks to phone and email columns.
	MaskPII bool
}

func NewQueryService(store port.Store, orderBy port.OrderByParser, configs port.ConfigRepository, policies port.PolicySource, auditor port.Auditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation, opts QueryOptions) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if policies == nil {
		policies = port.NoopPolicy{}
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	return &QueryService{
		store:     store,
		orderBy:   orderBy,
		configs:   configs,
		policies:  policies,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
		maxRows:   opts.MaxRows,
		timeout:   opts.Timeout,
		piiMasked: opts.MaskPII,
	}
}

// MaxRows returns the configured result cap.
func (s *QueryService) MaxRows() int { return s.maxRows }

// Query returns rows of table matching every condition. limit <= 0 means MaxRows;
// larger limits are capped.
func (s *QueryService) Query(ctx context.Context, table string, conditions []port.Condition, orderBy string, limit int) (*port.QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Query",
		trace.WithAttributes(
			attribute.String("db.system", s.store.Dialect()),
			attribute.String("db.operation.name", "select"),
			attribute.String("db.collection.name", table),
		),
	)
	defer span.End()

	req, err := s.buildRequest(ctx, table, conditions, orderBy, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "query rejected",
			slog.String("db.table", table),
			slog.String("error.type", "validation_error"),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.store.Query(ctx, *req)
	elapsed := time.Since(start)
	s.inst.RecordQueryDuration(ctx, req.Table, float64(elapsed.Milliseconds()))

	rows := 0
	if result != nil {
		rows = len(result.Rows)
	}
	s.auditor.Record(ctx, port.AuditEntry{
		RunID:      RunIDFromContext(ctx),
		Operation:  operationFromCtx(ctx, "query"),
		Table:      req.Table,
		Rows:       rows,
		DurationMS: elapsed.Milliseconds(),
		Err:        err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %q: %w", req.Table, err)
	}

	span.SetAttributes(attribute.Int("db.response.rows", rows))
	domain.MaskRows(result.Rows, s.masks(ctx, req.Table))
	return result, nil
}

func (s *QueryService) buildRequest(ctx context.Context, table string, conditions []port.Condition, orderBy string, limit int) (*port.QueryRequest, error) {
	if err := domain.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	live, err := s.liveColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(live))
	for _, c := range live {
		byName[strings.ToLower(c.Name)] = c.Name
	}
	resolve := func(name string) (string, error) {
		if err := domain.ValidateIdentifier(name); err != nil {
			return "", err
		}
		actual, ok := byName[strings.ToLower(name)]
		if !ok {
			return "", fmt.Errorf("%w: table %q has no column %q", domain.ErrInvalidQuery, table, name)
		}
		return actual, nil
	}

	req := &port.QueryRequest{Table: table, Limit: limit}
	for _, c := range conditions {
		col, err := resolve(c.Column)
		if err != nil {
			return nil, err
		}
		if len(c.Values) == 0 {
			return nil, fmt.Errorf("%w: condition on %q has no value", domain.ErrInvalidQuery, c.Column)
		}
		req.Conditions = append(req.Conditions, port.Condition{Column: col, Values: c.Values})
	}

	keys, err := s.orderBy.Parse(orderBy)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		col, err := resolve(k.Column)
		if err != nil {
			return nil, err
		}
		req.OrderBy = append(req.OrderBy, domain.SortKey{Column: col, Descending: k.Descending})
	}

	if req.Limit <= 0 || req.Limit > s.maxRows {
		req.Limit = s.maxRows
	}
	return req, nil
}

// Stats returns the live columns, row count and persisted config of table.
func (s *QueryService) Stats(ctx context.Context, table string) (*port.TableStats, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Stats",
		trace.WithAttributes(
			attribute.String("db.system", s.store.Dialect()),
			attribute.String("db.collection.name", table),
		),
	)
	defer span.End()

	stats, err := s.stats(ctx, table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("db.table.rows", stats.RowCount))
	return stats, nil
}

func (s *QueryService) stats(ctx context.Context, table string) (*port.TableStats, error) {
	if err := domain.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	live, err := s.liveColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountRows(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("counting rows of %q: %w", table, err)
	}

	stats := &port.TableStats{Table: table, RowCount: count, Columns: live}
	if s.configs != nil {
		cfg, err := s.configs.Load(ctx, table)
		switch {
		case err == nil:
			stats.Config = cfg
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "persisted config unreadable",
				slog.String("db.table", table),
				slog.String("error", err.Error()),
			)
		}
	}
	return stats, nil
}

func (s *QueryService) liveColumns(ctx context.Context, table string) ([]domain.LiveColumn, error) {
	exists, err := s.store.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("checking table %q: %w", table, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %q: %w", table, domain.ErrNotFound)
	}
	return s.store.LiveColumns(ctx, table)
}

// masks combines special-type PII masks from the persisted config with explicit
// policy masks. Policy entries win.
func (s *QueryService) masks(ctx context.Context, table string) map[string]domain.MaskType {
	var base map[string]domain.MaskType
	if s.piiMasked && s.configs != nil {
		if cfg, err := s.configs.Load(ctx, table); err == nil {
			base = domain.PIIMasks(cfg.Schema())
		}
	}
	pol, ok := s.policies.TablePolicy(table)
	if !ok {
		return base
	}
	return domain.MergeMasks(base, pol.Masks())
}
