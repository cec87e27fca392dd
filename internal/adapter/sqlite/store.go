// Package sqlite is a file-backed destination store on modernc.org/sqlite. It
// needs no server, which makes it the default for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/adapter/store"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	_ "modernc.org/sqlite"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, dsn string) (port.Store, error) {
		return Open(ctx, dsn)
	})
}

// Open opens (creating if needed) the database file at dsn. A "sqlite://" or
// "file:" prefix is accepted.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}
	return sqldb.NewStore(db, Dialect{}), nil
}

const (
	tableExistsSQL = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`

	liveColumnsSQL = `
SELECT name, type, "notnull" = 0, CASE WHEN pk > 0 THEN 'PRI' ELSE '' END, dflt_value,
       CASE WHEN pk > 0 AND upper(type) = 'INTEGER' THEN 'auto_increment' ELSE '' END
FROM pragma_table_info(?)
ORDER BY cid`
)

// Dialect renders SQLite DDL. Table options and comments have no SQLite
// equivalent and are not rendered.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }
func (Dialect) QuoteIdent(name string) string { return sqldb.QuoteWith(name, '"') }
func (Dialect) Placeholder(int) string { return "?" }
func (Dialect) TableExistsSQL() string { return tableExistsSQL }
func (Dialect) LiveColumnsSQL() string { return liveColumnsSQL }

// NativeType maps BIGINT to INTEGER, the only type SQLite allows for an
// AUTOINCREMENT rowid alias. Everything else is kept; SQLite derives affinity
// from the declared name.
func (Dialect) NativeType(storageType string) string {
	if domain.BaseType(storageType) == domain.TypeBigInt {
		return "INTEGER"
	}
	return storageType
}

func (d Dialect) CreateTableSQL(schema *domain.TableSchema) []string {
	inlinePK := len(schema.PrimaryKey) == 1
	if inlinePK {
		c, _ := schema.Column(schema.PrimaryKey[0])
		inlinePK = c.AutoIncrement
	}

	parts := make([]string, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		def := d.QuoteIdent(c.Name) + " " + d.NativeType(c.StorageType)
		switch {
		case inlinePK && c.Name == schema.PrimaryKey[0]:
			def += " PRIMARY KEY AUTOINCREMENT"
		case c.Nullable:
			def += " NULL"
		default:
			def += " NOT NULL"
		}
		if !c.AutoIncrement {
			if lit, ok := defaultLiteral(c.Default); ok {
				def += " DEFAULT " + lit
			}
		}
		parts = append(parts, "  "+def)
	}
	if !inlinePK && len(schema.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("  PRIMARY KEY (%s)", sqldb.ColumnList(d, schema.PrimaryKey)))
	}
	return []string{fmt.Sprintf("CREATE TABLE %s (\n%s\n)", d.QuoteIdent(schema.Name), strings.Join(parts, ",\n"))}
}

func defaultLiteral(v any) (string, bool) {
	switch v {
	case domain.DefaultCurrentTimestamp, domain.DefaultCurrentTimestampOnUpdate:
		return domain.DefaultCurrentTimestamp, true
	}
	if b, ok := v.(bool); ok {
		if b {
			return "1", true
		}
		return "0", true
	}
	return sqldb.DefaultLiteral(v, false)
}

// CreateIndexSQL indexes whole columns; SQLite has no key prefixes. FULLTEXT
// needs an FTS virtual table and is reported as unsupported.
func (d Dialect) CreateIndexSQL(spec domain.IndexSpec) (string, error) {
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("%w: index %q has no columns", domain.ErrIndexDefinition, spec.Name)
	}
	var verb string
	switch spec.Kind {
	case domain.IndexUnique:
		verb = "CREATE UNIQUE INDEX"
	case domain.IndexNormal:
		verb = "CREATE INDEX"
	case domain.IndexFulltext:
		return "", fmt.Errorf("%w: sqlite does not support fulltext index %q", domain.ErrIndexDefinition, spec.Name)
	default:
		return "", fmt.Errorf("%w: unknown index kind %q", domain.ErrIndexDefinition, spec.Kind)
	}
	names := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		names[i] = c.Name
	}
	return fmt.Sprintf("%s %s ON %s (%s)", verb, d.QuoteIdent(spec.Name), d.QuoteIdent(spec.Table), sqldb.ColumnList(d, names)), nil
}
