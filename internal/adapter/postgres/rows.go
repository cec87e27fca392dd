package postgres

import (
	"fmt"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/jackc/pgx/v5"
)

// rowsToResult converts pgx.Rows into maps keyed by column name, keeping the
// select order in Columns.
func rowsToResult(rows pgx.Rows) (*port.QueryResult, error) {
	fields := rows.FieldDescriptions()
	result := &port.QueryResult{Columns: make([]string, len(fields)), Rows: []map[string]any{}}
	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}
