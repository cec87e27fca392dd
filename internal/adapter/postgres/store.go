// Package postgres is the PostgreSQL destination store on pgx. Batches are
// written with COPY inside a transaction.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/adapter/store"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	store.Register("postgres", func(ctx context.Context, dsn string) (port.Store, error) {
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewStore(pool), nil
	})
}

// Store implements port.Store over a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	dialect Dialect
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Dialect() string { return s.dialect.Name() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) NativeType(storageType string) string { return s.dialect.NativeType(storageType) }

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, queryTableExists, table).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTable runs the table and comment statements in one transaction;
// PostgreSQL DDL is transactional.
func (s *Store) CreateTable(ctx context.Context, schema *domain.TableSchema) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range s.dialect.CreateTableSQL(schema) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, sqldb.DropSQL(s.dialect, table))
	return err
}

func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	stmt, err := s.dialect.CreateIndexSQL(spec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, stmt)
	return err
}

func (s *Store) LiveColumns(ctx context.Context, table string) ([]domain.LiveColumn, error) {
	rows, err := s.pool.Query(ctx, queryLiveColumns, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var out []domain.LiveColumn
	for rows.Next() {
		var c domain.LiveColumn
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Key, &c.Default, &c.Extra); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return out, nil
}

// InsertBatch copies rows inside one transaction. Values are coerced to the live
// column types first, since COPY uses the binary protocol and does not parse text.
func (s *Store) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	live, err := s.LiveColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	coerce := coercers(live, columns)
	converted := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = coerce[j](v)
		}
		converted[i] = out
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(converted))
	if err != nil {
		return 0, fmt.Errorf("copying rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

func (s *Store) Query(ctx context.Context, req port.QueryRequest) (*port.QueryResult, error) {
	query, args := sqldb.SelectSQL(s.dialect, req)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return rowsToResult(rows)
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, sqldb.CountSQL(s.dialect, table)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type coerceFunc func(any) any

func identity(v any) any { return v }

// coercers returns one converter per insert column, chosen from the live type.
func coercers(live []domain.LiveColumn, columns []string) []coerceFunc {
	types := make(map[string]string, len(live))
	for _, c := range live {
		types[strings.ToLower(c.Name)] = strings.ToLower(c.Type)
	}
	out := make([]coerceFunc, len(columns))
	for i, name := range columns {
		t := types[strings.ToLower(name)]
		switch {
		case strings.HasPrefix(t, "timestamp"), t == "date":
			out[i] = toTime
		case t == "smallint", t == "integer", t == "bigint":
			out[i] = toInt
		case t == "real", t == "double precision", t == "numeric":
			out[i] = toFloat
		case strings.HasPrefix(t, "character"), t == "text":
			out[i] = toText
		default:
			out[i] = identity
		}
	}
	return out
}

func toTime(v any) any {
	switch val := v.(type) {
	case string:
		if t, ok := domain.ParseDatetime(val); ok {
			return t
		}
		return nil
	case time.Time:
		return val
	}
	return v
}

func toInt(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) {
			return int64(val)
		}
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func toFloat(v any) any {
	if val, ok := v.(int64); ok {
		return float64(val)
	}
	return v
}

func toText(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(string); ok {
		return v
	}
	return domain.ValueString(v)
}
