package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// RowsToResult converts sql.Rows into column-keyed maps. Byte slices are
// returned as strings.
func RowsToResult(rows *sql.Rows) (*port.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	result := &port.QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = vals[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}
