package bitable

import (
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// truthy are the checkbox spellings accepted from text cells.
var truthy = map[string]bool{"1": true, "true": true, "是": true, "y": true, "yes": true}

// ConvertRow renders one row in the shapes the Bitable field types expect.
// Null values are left out so the remote field keeps its empty state.
func ConvertRow(row map[string]any, fields map[string]port.SinkField) map[string]any {
	out := make(map[string]any, len(row))
	for name, v := range row {
		if v == nil {
			continue
		}
		ft, ok := fields[name]
		if !ok {
			ft = port.SinkText
		}
		out[name] = ConvertValue(v, ft)
	}
	return out
}

// ConvertValue converts a single non-null value to field type ft.
func ConvertValue(v any, ft port.SinkField) any {
	switch ft {
	case port.SinkNumber:
		return toNumber(v)
	case port.SinkURL:
		s := domain.ValueString(v)
		return map[string]string{"link": s, "text": s}
	case port.SinkDate:
		return toMillis(v)
	case port.SinkCheckbox:
		if b, ok := v.(bool); ok {
			return b
		}
		return truthy[strings.ToLower(strings.TrimSpace(domain.ValueString(v)))]
	case port.SinkMultiSelect:
		return splitOptions(v)
	case port.SinkUser:
		if ids, ok := v.([]string); ok {
			return ids
		}
		return []string{domain.ValueString(v)}
	default:
		return domain.ValueString(v)
	}
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(domain.ValueString(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

// toMillis returns a Unix millisecond timestamp, or the text unchanged when it
// does not parse as a date.
func toMillis(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	s := domain.ValueString(v)
	if t, ok := domain.ParseDatetime(s); ok {
		return t.UnixMilli()
	}
	return s
}

func splitOptions(v any) []string {
	if list, ok := v.([]string); ok {
		return list
	}
	parts := strings.Split(domain.ValueString(v), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
