package service

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// ParseConditions parses "col=value" expressions. A value of the form
// "a|b|c" becomes an IN list. Column validity is checked later by Query.
func ParseConditions(exprs []string) ([]port.Condition, error) {
	conditions := make([]port.Condition, 0, len(exprs))
	for _, expr := range exprs {
		col, raw, ok := strings.Cut(expr, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("%w: condition %q must look like column=value", domain.ErrInvalidQuery, expr)
		}
		parts := strings.Split(raw, "|")
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = p
		}
		conditions = append(conditions, port.Condition{Column: col, Values: values})
	}
	return conditions, nil
}

// ConditionsFromMap converts a decoded JSON object of column -> value or
// column -> [values] into conditions ordered by column name.
func ConditionsFromMap(raw any) ([]port.Condition, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: where must be an object of column -> value", domain.ErrInvalidQuery)
	}
	conditions := make([]port.Condition, 0, len(obj))
	for _, col := range slices.Sorted(maps.Keys(obj)) {
		var values []any
		switch v := obj[col].(type) {
		case []any:
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: where.%s: empty value list", domain.ErrInvalidQuery, col)
			}
			for _, item := range v {
				sv, err := jsonScalar(col, item)
				if err != nil {
					return nil, err
				}
				values = append(values, sv)
			}
		default:
			sv, err := jsonScalar(col, v)
			if err != nil {
				return nil, err
			}
			values = []any{sv}
		}
		conditions = append(conditions, port.Condition{Column: col, Values: values})
	}
	return conditions, nil
}

// jsonScalar rejects nested structures and narrows integral JSON numbers to int64.
func jsonScalar(col string, v any) (any, error) {
	switch x := v.(type) {
	case map[string]any, []any:
		return nil, fmt.Errorf("%w: where.%s: nested values are not supported", domain.ErrInvalidQuery, col)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	default:
		return v, nil
	}
}
