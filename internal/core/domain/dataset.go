package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the native kind of a dataset column.
type ValueKind string

const (
	KindInteger  ValueKind = "integer"
	KindFloat    ValueKind = "float"
	KindBoolean  ValueKind = "boolean"
	KindText     ValueKind = "text"
	KindDatetime ValueKind = "datetime"
)

// Column is one named dataset column. Values holds one entry per row; nil is null.
// Non-null values are int64, float64, bool, string or time.Time according to Kind.
type Column struct {
	Name   string
	Kind   ValueKind
	Values []any
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	Columns []Column
}

// NewDataset checks that every column has the same length and a unique name.
func NewDataset(columns []Column) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if i > 0 && len(c.Values) != len(columns[0].Values) {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), len(columns[0].Values))
		}
	}
	return &Dataset{Columns: columns}, nil
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns column names in dataset order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// DatasetFromRecords builds a typed dataset from a header and string rows, the
// shape produced by CSV and spreadsheet readers. Headers are normalized and
// de-duplicated, empty cells become null and each column's kind is inferred
// from its non-null cells.
func DatasetFromRecords(header []string, records [][]string) (*Dataset, error) {
	names := UniqueColumnNames(header)
	columns := make([]Column, len(names))
	for ci, name := range names {
		raw := make([]string, len(records))
		for ri, rec := range records {
			if ci < len(rec) {
				raw[ri] = rec[ci]
			}
		}
		kind := InferKind(raw)
		values, err := convertColumn(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns[ci] = Column{Name: name, Kind: kind, Values: values}
	}
	return NewDataset(columns)
}

// InferKind picks the narrowest native kind satisfied by every non-empty cell.
// A column with no non-empty cells is text.
func InferKind(cells []string) ValueKind {
	allInt, allFloat, allBool, allTime := true, true, true, true
	nonEmpty := 0
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		nonEmpty++
		if allInt {
			if _, err := strconv.ParseInt(c, 10, 64); err != nil || hasLeadingZero(c) {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(c, 64); err != nil || hasLeadingZero(c) {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(c); !ok {
				allBool = false
			}
		}
		if allTime {
			if _, ok := ParseDatetime(c); !ok {
				allTime = false
			}
		}
		if !allInt && !allFloat && !allBool && !allTime {
			return KindText
		}
	}
	switch {
	case nonEmpty == 0:
		return KindText
	case allInt:
		return KindInteger
	case allFloat:
		return KindFloat
	case allBool:
		return KindBoolean
	case allTime:
		return KindDatetime
	default:
		return KindText
	}
}

// hasLeadingZero keeps identifiers such as zip codes ("00123") textual.
func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func convertColumn(cells []string, kind ValueKind) ([]any, error) {
	out := make([]any, len(cells))
	for i, raw := range cells {
		c := strings.TrimSpace(raw)
		if c == "" {
			continue
		}
		switch kind {
		case KindInteger:
			n, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			out[i] = n
		case KindFloat:
			f, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			out[i] = f
		case KindBoolean:
			b, _ := parseBool(c)
			out[i] = b
		case KindDatetime:
			t, _ := ParseDatetime(c)
			out[i] = t
		default:
			out[i] = raw
		}
	}
	return out, nil
}

// ValueString renders a dataset value as text, the form used for pattern checks
// and length statistics.
func ValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(DatetimeStorageLayout)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ReservedPrefix is prepended to source columns whose names clash with a synthetic column.
const ReservedPrefix = "src_"

// RenameReserved renames columns that clash (case-insensitively) with the synthetic
// id, created_at and updated_at columns. It returns old name -> new name.
func (d *Dataset) RenameReserved() map[string]string {
	renamed := make(map[string]string)
	taken := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		taken[strings.ToLower(c.Name)] = true
	}
	for i, c := range d.Columns {
		if !isReservedName(c.Name) {
			continue
		}
		name := c.Name
		for taken[strings.ToLower(name)] || isReservedName(name) {
			name = ReservedPrefix + name
		}
		taken[strings.ToLower(name)] = true
		d.Columns[i].Name = name
		renamed[c.Name] = name
	}
	return renamed
}

func isReservedName(name string) bool {
	for _, r := range []string{ColumnID, ColumnCreatedAt, ColumnUpdatedAt} {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}
