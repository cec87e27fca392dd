package domain

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SortKey is one validated ORDER BY term.
type SortKey struct {
	Column     string
	Descending bool
}

// OrderByValidator checks user supplied ORDER BY clauses with a real SQL parser.
// Only plain column references with an optional ASC or DESC are accepted, so the
// clause can be re-rendered with dialect quoting instead of being passed through.
type OrderByValidator struct{}

func NewOrderByValidator() *OrderByValidator {
	return &OrderByValidator{}
}

// Parse validates clause and returns its sort keys. An empty clause yields no keys.
func (v *OrderByValidator) Parse(clause string) ([]SortKey, error) {
	trimmed := strings.TrimSpace(clause)
	if trimmed == "" {
		return nil, nil
	}
	if strings.ContainsAny(trimmed, ";") {
		return nil, fmt.Errorf("%w: order_by must not contain ';'", ErrInvalidQuery)
	}

	tree, err := pg_query.Parse("SELECT 1 FROM t ORDER BY " + trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: order_by %q: %w", ErrInvalidQuery, clause, err)
	}
	if len(tree.Stmts) != 1 || tree.Stmts[0].Stmt == nil {
		return nil, fmt.Errorf("%w: order_by %q", ErrInvalidQuery, clause)
	}
	sel, ok := tree.Stmts[0].Stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok || sel.SelectStmt == nil || sel.SelectStmt.LimitCount != nil || sel.SelectStmt.LimitOffset != nil {
		return nil, fmt.Errorf("%w: order_by %q", ErrInvalidQuery, clause)
	}

	var keys []SortKey
	for _, node := range sel.SelectStmt.SortClause {
		sb, ok := node.Node.(*pg_query.Node_SortBy)
		if !ok || sb.SortBy == nil || sb.SortBy.Node == nil {
			return nil, fmt.Errorf("%w: order_by %q", ErrInvalidQuery, clause)
		}
		col, ok := columnRefName(sb.SortBy.Node)
		if !ok {
			return nil, fmt.Errorf("%w: order_by accepts column names only, got %q", ErrInvalidQuery, clause)
		}
		if sb.SortBy.SortbyNulls != pg_query.SortByNulls_SORTBY_NULLS_DEFAULT {
			return nil, fmt.Errorf("%w: NULLS FIRST/LAST is not supported in order_by", ErrInvalidQuery)
		}
		var desc bool
		switch sb.SortBy.SortbyDir {
		case pg_query.SortByDir_SORTBY_DEFAULT, pg_query.SortByDir_SORTBY_ASC:
		case pg_query.SortByDir_SORTBY_DESC:
			desc = true
		default:
			return nil, fmt.Errorf("%w: unsupported sort direction in %q", ErrInvalidQuery, clause)
		}
		keys = append(keys, SortKey{Column: col, Descending: desc})
	}
	return keys, nil
}

// columnRefName extracts an unqualified column name from a ColumnRef node.
func columnRefName(n *pg_query.Node) (string, bool) {
	cr, ok := n.Node.(*pg_query.Node_ColumnRef)
	if !ok || cr.ColumnRef == nil || len(cr.ColumnRef.Fields) != 1 {
		return "", false
	}
	str, ok := cr.ColumnRef.Fields[0].Node.(*pg_query.Node_String_)
	if !ok || str.String_ == nil || str.String_.Sval == "" {
		return "", false
	}
	return str.String_.Sval, true
}
