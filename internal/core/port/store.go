package port

import (
	"context"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
)

// Condition filters rows on one column. A single value is an equality test,
// several values are an IN list.
type Condition struct {
	Column string `json:"column"`
	Values []any  `json:"values"`
}

// QueryRequest is a read against a single table. Conditions are AND-combined.
type QueryRequest struct {
	Table      string
	Conditions []Condition
	OrderBy    []domain.SortKey
	Limit      int
}

// QueryResult holds rows keyed by column name. Columns preserves the select order.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// TableStats describes a live table.
type TableStats struct {
	Table    string              `json:"table"`
	RowCount int64               `json:"row_count"`
	Columns  []domain.LiveColumn `json:"columns"`
	Config   *domain.Config      `json:"config,omitempty"`
}

// Store is the destination-store contract. Implementations translate the
// MySQL-flavored storage types of a TableSchema into their own dialect.
type Store interface {
	// Dialect names the backend, e.g. "mysql".
	Dialect() string
	Ping(ctx context.Context) error
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, schema *domain.TableSchema) error
	DropTable(ctx context.Context, table string) error
	CreateIndex(ctx context.Context, spec domain.IndexSpec) error
	LiveColumns(ctx context.Context, table string) ([]domain.LiveColumn, error)
	// InsertBatch inserts rows inside one transaction. Either every row commits or none does.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
	CountRows(ctx context.Context, table string) (int64, error)
	// NativeType returns the store's spelling of a configured storage type.
	NativeType(storageType string) string
	Close() error
}
