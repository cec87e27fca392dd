package mysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
)

const (
	tableExistsSQL = `
SELECT COUNT(*)
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`

	liveColumnsSQL = `
SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE = 'YES', COLUMN_KEY, COLUMN_DEFAULT, EXTRA
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`
)

// Dialect renders MySQL DDL. Config storage types are already MySQL types.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }
func (Dialect) QuoteIdent(name string) string { return sqldb.QuoteWith(name, '`') }
func (Dialect) Placeholder(int) string { return "?" }
func (Dialect) NativeType(storageType string) string { return storageType }
func (Dialect) TableExistsSQL() string { return tableExistsSQL }
func (Dialect) LiveColumnsSQL() string { return liveColumnsSQL }

// CreateTableSQL renders one CREATE TABLE statement with the primary key inline
// and table options (engine, auto-increment start, charset, collation, comment).
func (d Dialect) CreateTableSQL(schema *domain.TableSchema) []string {
	parts := make([]string, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		parts = append(parts, "  "+d.columnSQL(c))
	}
	if len(schema.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("  PRIMARY KEY (%s)", sqldb.ColumnList(d, schema.PrimaryKey)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n%s\n)", d.QuoteIdent(schema.Name), strings.Join(parts, ",\n"))
	if schema.Engine != "" {
		b.WriteString(" ENGINE=" + schema.Engine)
	}
	if schema.AutoIncrementStart > 1 {
		b.WriteString(" AUTO_INCREMENT=" + strconv.FormatInt(schema.AutoIncrementStart, 10))
	}
	if schema.Charset != "" {
		b.WriteString(" DEFAULT CHARSET=" + schema.Charset)
	}
	if schema.Collate != "" {
		b.WriteString(" COLLATE=" + schema.Collate)
	}
	if schema.Comment != "" {
		b.WriteString(" COMMENT=" + sqldb.StringLiteral(schema.Comment, true))
	}
	return []string{b.String()}
}

func (d Dialect) columnSQL(c domain.ColumnDescriptor) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(c.StorageType)
	if c.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	} else if lit, ok := sqldb.DefaultLiteral(c.Default, true); ok && !blocksLiteralDefault(c) {
		b.WriteString(" DEFAULT " + lit)
	}
	if c.Comment != "" {
		b.WriteString(" COMMENT " + sqldb.StringLiteral(c.Comment, true))
	}
	return b.String()
}

// blocksLiteralDefault reports whether MySQL rejects a literal DEFAULT on the column.
// TEXT and BLOB types only accept expression defaults; the loader substitutes the
// configured default for NULL values instead.
func blocksLiteralDefault(c domain.ColumnDescriptor) bool {
	base := domain.BaseType(c.StorageType)
	return domain.IsLargeText(c.StorageType) || strings.HasSuffix(base, "BLOB") || base == "JSON"
}

// CreateIndexSQL renders unique, normal and FULLTEXT indexes. FULLTEXT key parts
// cannot take a prefix length, so it is dropped there.
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
		verb = "CREATE FULLTEXT INDEX"
	default:
		return "", fmt.Errorf("%w: unknown index kind %q", domain.ErrIndexDefinition, spec.Kind)
	}

	keys := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		keys[i] = d.QuoteIdent(c.Name)
		if c.PrefixLength > 0 && spec.Kind != domain.IndexFulltext {
			keys[i] += fmt.Sprintf("(%d)", c.PrefixLength)
		}
	}
	return fmt.Sprintf("%s %s ON %s (%s)", verb, d.QuoteIdent(spec.Name), d.QuoteIdent(spec.Table), strings.Join(keys, ", ")), nil
}
