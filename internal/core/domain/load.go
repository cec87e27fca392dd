package domain

import (
	"fmt"
	"time"
)

// DefaultBatchSize is the number of rows per load transaction.
const DefaultBatchSize = 1000

// Batch is a contiguous, order-preserving slice of rows [Offset, Offset+Size).
type Batch struct {
	Index  int
	Offset int
	Size   int
}

// Partition splits total rows into ceil(total/size) batches in row order.
// A non-positive size falls back to DefaultBatchSize.
func Partition(total, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if total <= 0 {
		return nil
	}
	batches := make([]Batch, 0, (total+size-1)/size)
	for offset, i := 0, 0; offset < total; offset, i = offset+size, i+1 {
		batches = append(batches, Batch{Index: i, Offset: offset, Size: min(size, total-offset)})
	}
	return batches
}

// BatchResult is the outcome of one batch transaction.
type BatchResult struct {
	Index     int           `json:"index"`
	Offset    int           `json:"offset"`
	Attempted int           `json:"attempted"`
	Committed int           `json:"committed"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LoadResult aggregates a load. Committed counts only rows in batches that
// committed; earlier batches stay committed when a later one fails.
type LoadResult struct {
	RunID     string        `json:"run_id,omitempty"`
	Table     string        `json:"table"`
	Attempted int           `json:"attempted"`
	Committed int           `json:"committed"`
	Batches   []BatchResult `json:"batches"`
	Rejected  []Rejection   `json:"rejected,omitempty"`
	Err       error         `json:"-"`
}

// Success reports whether every batch committed.
func (r LoadResult) Success() bool { return r.Err == nil }

// Rejection records a value replaced by NULL because it failed its special type pattern.
type Rejection struct {
	Row    int         `json:"row"`
	Column string      `json:"column"`
	Type   SpecialType `json:"special_type"`
	Value  string      `json:"value"`
}

// PreparedRows are the insertable rows derived from a dataset.
type PreparedRows struct {
	Columns  []string
	Rows     [][]any
	Rejected []Rejection
}

// PrepareRows selects the dataset columns that the schema declares, in schema
// order, and cleans values:
//   - url, email and phone values failing their pattern become NULL
//   - datetime values are normalized to DatetimeStorageLayout, unparseable ones become NULL
//   - NULL in a NOT NULL column with a default takes the default
//
// Synthetic columns are left to the store.
func PrepareRows(ds *Dataset, schema *TableSchema) (*PreparedRows, error) {
	type source struct {
		desc ColumnDescriptor
		col  *Column
	}
	var sources []source
	for _, desc := range schema.Columns {
		if desc.IsSynthetic() {
			continue
		}
		col, ok := ds.Column(desc.Name)
		if !ok {
			continue
		}
		sources = append(sources, source{desc: desc, col: col})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no dataset column matches the fields of table %q", ErrInvalidConfig, schema.Name)
	}

	out := &PreparedRows{Columns: make([]string, len(sources))}
	for i, s := range sources {
		out.Columns[i] = s.desc.Name
	}

	n := ds.RowCount()
	out.Rows = make([][]any, n)
	for r := 0; r < n; r++ {
		row := make([]any, len(sources))
		for i, s := range sources {
			v, rejected := cleanValue(s.col.Values[r], s.desc)
			if rejected {
				out.Rejected = append(out.Rejected, Rejection{Row: r, Column: s.desc.Name, Type: s.desc.SpecialType, Value: ValueString(s.col.Values[r])})
			}
			if v == nil && !s.desc.Nullable && s.desc.Default != nil && !isTimestampExpr(s.desc.Default) {
				v = s.desc.Default
			}
			row[i] = v
		}
		out.Rows[r] = row
	}
	return out, nil
}

func cleanValue(v any, desc ColumnDescriptor) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch desc.SpecialType {
	case SpecialURL, SpecialEmail, SpecialPhone:
		s := ValueString(v)
		if !MatchesSpecialType(desc.SpecialType, s) {
			return nil, true
		}
		return s, false
	case SpecialDatetime:
		if t, ok := v.(time.Time); ok {
			return t.Format(DatetimeStorageLayout), false
		}
		t, ok := ParseDatetime(ValueString(v))
		if !ok {
			return nil, true
		}
		return t.Format(DatetimeStorageLayout), false
	}
	return v, false
}

func isTimestampExpr(v any) bool {
	s, ok := v.(string)
	return ok && (s == DefaultCurrentTimestamp || s == DefaultCurrentTimestampOnUpdate)
}
