package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// Store implements port.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for tests and maintenance.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() string { return s.dialect.Name() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) NativeType(storageType string) string {
	return s.dialect.NativeType(storageType)
}

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.TableExistsSQL(), table).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateTable(ctx context.Context, schema *domain.TableSchema) error {
	for _, stmt := range s.dialect.CreateTableSQL(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, DropSQL(s.dialect, table))
	return err
}

func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	stmt, err := s.dialect.CreateIndexSQL(spec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Store) LiveColumns(ctx context.Context, table string) ([]domain.LiveColumn, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.LiveColumnsSQL(), table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var out []domain.LiveColumn
	for rows.Next() {
		var (
			c   domain.LiveColumn
			def sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Key, &def, &c.Extra); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		if def.Valid {
			c.Default = &def.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return out, nil
}

// InsertBatch inserts rows inside one transaction with a prepared statement.
func (s *Store) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, InsertSQL(s.dialect, table, columns))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += affected
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

func (s *Store) Query(ctx context.Context, req port.QueryRequest) (*port.QueryResult, error) {
	query, args := SelectSQL(s.dialect, req)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return RowsToResult(rows)
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, CountSQL(s.dialect, table)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
