package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// ExportService copies query results into a remote table sink.
type ExportService struct {
	queries *QueryService
	configs port.ConfigRepository
	sink    port.RowSink
	logger  *slog.Logger
}

func NewExportService(queries *QueryService, configs port.ConfigRepository, sink port.RowSink, logger *slog.Logger) *ExportService {
	return &ExportService{queries: queries, configs: configs, sink: sink, logger: logger}
}

// Export reads matching rows of table (masked like any query) and writes them to target.
func (s *ExportService) Export(ctx context.Context, table, target string, conditions []port.Condition, limit int) (*port.SinkResult, error) {
	if s.sink == nil {
		return nil, errors.New("no row sink configured")
	}
	if target == "" {
		return nil, fmt.Errorf("%w: export target is required", domain.ErrInvalidQuery)
	}

	res, err := s.queries.Query(WithOperation(ctx, "export"), table, conditions, "", limit)
	if err != nil {
		return nil, err
	}

	fields := map[string]port.SinkField{}
	if cfg, err := s.configs.Load(ctx, table); err == nil {
		fields = SinkFields(cfg.Schema())
	}

	out, err := s.sink.WriteRows(ctx, port.SinkWrite{Target: target, Fields: fields, Rows: res.Rows})
	if err != nil {
		return out, fmt.Errorf("exporting %q to %q: %w", table, target, err)
	}
	s.logger.InfoContext(ctx, "export complete",
		slog.String("db.table", table),
		slog.String("sink.target", target),
		slog.Int("rows", out.Written),
	)
	return out, nil
}

// SinkFields maps schema columns to sink field types.
func SinkFields(schema *domain.TableSchema) map[string]port.SinkField {
	out := make(map[string]port.SinkField, len(schema.Columns))
	for _, c := range schema.Columns {
		out[c.Name] = sinkFieldFor(c)
	}
	return out
}

func sinkFieldFor(c domain.ColumnDescriptor) port.SinkField {
	switch {
	case c.SpecialType == domain.SpecialURL:
		return port.SinkURL
	case c.SpecialType.IsTimeType():
		return port.SinkDate
	case domain.IsBooleanType(c.StorageType):
		return port.SinkCheckbox
	case domain.IsNumericType(c.StorageType):
		return port.SinkNumber
	default:
		return port.SinkText
	}
}
