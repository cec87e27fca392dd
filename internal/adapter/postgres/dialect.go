package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// nativeTypes translates MySQL storage keywords that PostgreSQL spells differently.
var nativeTypes = map[string]string{
	"TINYINT":    "SMALLINT",
	"MEDIUMINT":  "INTEGER",
	"INT":        "INTEGER",
	"DOUBLE":     "DOUBLE PRECISION",
	"FLOAT":      "REAL",
	"DATETIME":   "TIMESTAMP",
	"TINYTEXT":   "TEXT",
	"MEDIUMTEXT": "TEXT",
	"LONGTEXT":   "TEXT",
	"BLOB":       "BYTEA",
	"LONGBLOB":   "BYTEA",
}

// Dialect renders PostgreSQL DDL from the MySQL-flavored schema vocabulary.
// Engine, charset and collation have no per-table equivalent and are ignored.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) QuoteIdent(name string) string { return pgx.Identifier{name}.Sanitize() }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Dialect) TableExistsSQL() string { return queryTableExists }

func (Dialect) LiveColumnsSQL() string { return queryLiveColumns }

func (Dialect) NativeType(storageType string) string {
	base := domain.BaseType(storageType)
	if native, ok := nativeTypes[base]; ok {
		return native
	}
	return storageType
}

// CreateTableSQL returns CREATE TABLE followed by COMMENT ON statements.
// Auto-increment columns become identity columns. ON UPDATE has no column-level
// equivalent, so updated_at keeps only its insert default.
func (d Dialect) CreateTableSQL(schema *domain.TableSchema) []string {
	table := d.QuoteIdent(schema.Name)
	parts := make([]string, 0, len(schema.Columns)+1)
	var comments []string
	for _, c := range schema.Columns {
		parts = append(parts, "  "+d.columnSQL(c, schema.AutoIncrementStart))
		if c.Comment != "" {
			comments = append(comments, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
				table, d.QuoteIdent(c.Name), sqldb.StringLiteral(c.Comment, false)))
		}
	}
	if len(schema.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("  PRIMARY KEY (%s)", sqldb.ColumnList(d, schema.PrimaryKey)))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n%s\n)", table, strings.Join(parts, ",\n"))}
	if schema.Comment != "" {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", table, sqldb.StringLiteral(schema.Comment, false)))
	}
	return append(stmts, comments...)
}

func (d Dialect) columnSQL(c domain.ColumnDescriptor, identityStart int64) string {
	def := d.QuoteIdent(c.Name) + " " + d.NativeType(c.StorageType)
	if c.Nullable {
		def += " NULL"
	} else {
		def += " NOT NULL"
	}
	if c.AutoIncrement {
		return def + fmt.Sprintf(" GENERATED BY DEFAULT AS IDENTITY (START WITH %d)", max(identityStart, 1))
	}
	if c.Default == domain.DefaultCurrentTimestampOnUpdate {
		return def + " DEFAULT " + domain.DefaultCurrentTimestamp
	}
	if lit, ok := sqldb.DefaultLiteral(c.Default, false); ok {
		def += " DEFAULT " + lit
	}
	return def
}

// CreateIndexSQL renders B-tree indexes for unique and normal kinds, with
// left(col, n) expressions standing in for key prefixes, and GIN indexes over
// to_tsvector for fulltext.
func (d Dialect) CreateIndexSQL(spec domain.IndexSpec) (string, error) {
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("%w: index %q has no columns", domain.ErrIndexDefinition, spec.Name)
	}
	name, table := d.QuoteIdent(spec.Name), d.QuoteIdent(spec.Table)

	switch spec.Kind {
	case domain.IndexUnique, domain.IndexNormal:
		keys := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			keys[i] = d.QuoteIdent(c.Name)
			if c.PrefixLength > 0 {
				keys[i] = fmt.Sprintf("left(%s, %d)", keys[i], c.PrefixLength)
			}
		}
		verb := "CREATE INDEX"
		if spec.Kind == domain.IndexUnique {
			verb = "CREATE UNIQUE INDEX"
		}
		return fmt.Sprintf("%s %s ON %s (%s)", verb, name, table, strings.Join(keys, ", ")), nil
	case domain.IndexFulltext:
		docs := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			docs[i] = fmt.Sprintf("coalesce(%s, '')", d.QuoteIdent(c.Name))
		}
		return fmt.Sprintf("CREATE INDEX %s ON %s USING GIN (to_tsvector('simple', %s))",
			name, table, strings.Join(docs, " || ' ' || ")), nil
	default:
		return "", fmt.Errorf("%w: unknown index kind %q", domain.ErrIndexDefinition, spec.Kind)
	}
}
