// Package sqldb holds the SQL rendering shared by every destination dialect and a
// database/sql backed Store used by the MySQL and SQLite adapters.
package sqldb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// Dialect renders SQL for one backend.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	// Placeholder returns the bind marker for the n-th argument, 1-based.
	Placeholder(n int) string
	NativeType(storageType string) string
	// CreateTableSQL returns the statements that create the table, in order.
	CreateTableSQL(schema *domain.TableSchema) []string
	CreateIndexSQL(spec domain.IndexSpec) (string, error)
	// TableExistsSQL takes the table name as its only argument and returns a count.
	TableExistsSQL() string
	// LiveColumnsSQL takes the table name as its only argument and returns
	// name, type, nullable, key, default, extra per column in ordinal order.
	LiveColumnsSQL() string
}

// QuoteWith wraps name in q, doubling any embedded q.
func QuoteWith(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}

// StringLiteral renders s as a single-quoted SQL literal. Backslashes are doubled
// when escapeBackslash is set (MySQL).
func StringLiteral(s string, escapeBackslash bool) string {
	if escapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DefaultLiteral renders a column default. ok is false when no DEFAULT clause
// should be emitted.
func DefaultLiteral(v any, escapeBackslash bool) (lit string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		if val {
			return "TRUE", true
		}
		return "FALSE", true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case string:
		if val == domain.DefaultCurrentTimestamp || val == domain.DefaultCurrentTimestampOnUpdate {
			return val, true
		}
		return StringLiteral(val, escapeBackslash), true
	default:
		return StringLiteral(fmt.Sprintf("%v", val), escapeBackslash), true
	}
}

// ColumnList quotes and joins names.
func ColumnList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// InsertSQL renders a single-row INSERT for columns.
func InsertSQL(d Dialect, table string, columns []string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), ColumnList(d, columns), strings.Join(marks, ", "))
}

// SelectSQL renders a validated QueryRequest. Identifiers are quoted, values bound.
func SelectSQL(d Dialect, req port.QueryRequest) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT * FROM ")
	b.WriteString(d.QuoteIdent(req.Table))

	for i, c := range req.Conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(d.QuoteIdent(c.Column))
		if len(c.Values) == 1 {
			args = append(args, c.Values[0])
			b.WriteString(" = ")
			b.WriteString(d.Placeholder(len(args)))
			continue
		}
		b.WriteString(" IN (")
		for j, v := range c.Values {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			b.WriteString(d.Placeholder(len(args)))
		}
		b.WriteString(")")
	}

	for i, k := range req.OrderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(k.Column))
		if k.Descending {
			b.WriteString(" DESC")
		}
	}

	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}
	return b.String(), args
}

// CountSQL renders SELECT COUNT(*) for table.
func CountSQL(d Dialect, table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdent(table)
}

// DropSQL renders DROP TABLE IF EXISTS for table.
func DropSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table)
}
