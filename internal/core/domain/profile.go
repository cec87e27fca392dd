package domain

import (
	"math"
	"time"
	"unicode/utf8"
)

// ColumnProfile is the per-column analysis result that feeds type inference.
type ColumnProfile struct {
	Name          string
	Kind          ValueKind
	RowCount      int
	NullCount     int
	DistinctCount int
	// MinInt and MaxInt are set for integer columns with at least one value.
	MinInt, MaxInt int64
	MinFloat       float64
	MaxFloat       float64
	// MaxLength and AvgLength are measured in characters over non-null values.
	MaxLength   int
	AvgLength   float64
	SpecialType SpecialType
}

// Nullable reports whether any null was observed.
func (p ColumnProfile) Nullable() bool { return p.NullCount > 0 }

// NonNullCount returns the number of non-null values.
func (p ColumnProfile) NonNullCount() int { return p.RowCount - p.NullCount }

// UniquePercentage is distinct values over all rows, in percent.
func (p ColumnProfile) UniquePercentage() float64 {
	if p.RowCount == 0 {
		return 0
	}
	return float64(p.DistinctCount) / float64(p.RowCount) * 100
}

// ProfileColumn computes statistics for one column and runs special type detection.
// Native datetime columns are always classified as SpecialDatetime; boolean and
// float columns are never pattern-checked.
func ProfileColumn(col Column, det Detector) ColumnProfile {
	p := ColumnProfile{
		Name:        col.Name,
		Kind:        col.Kind,
		RowCount:    len(col.Values),
		SpecialType: SpecialNone,
		MinFloat:    math.Inf(1),
		MaxFloat:    math.Inf(-1),
	}

	distinct := make(map[any]struct{})
	totalLen := 0
	first := true
	for _, v := range col.Values {
		if v == nil {
			p.NullCount++
			continue
		}
		distinct[distinctKey(v)] = struct{}{}

		s := ValueString(v)
		n := utf8.RuneCountInString(s)
		totalLen += n
		p.MaxLength = max(p.MaxLength, n)

		switch val := v.(type) {
		case int64:
			if first {
				p.MinInt, p.MaxInt = val, val
			}
			p.MinInt = min(p.MinInt, val)
			p.MaxInt = max(p.MaxInt, val)
			first = false
		case float64:
			p.MinFloat = math.Min(p.MinFloat, val)
			p.MaxFloat = math.Max(p.MaxFloat, val)
		}
	}
	p.DistinctCount = len(distinct)
	if nn := p.NonNullCount(); nn > 0 {
		p.AvgLength = float64(totalLen) / float64(nn)
	}
	if math.IsInf(p.MinFloat, 1) {
		p.MinFloat, p.MaxFloat = 0, 0
	}

	switch col.Kind {
	case KindDatetime:
		p.SpecialType = SpecialDatetime
	case KindText, KindInteger:
		p.SpecialType = det.Detect(col.Values)
	}
	return p
}

// ProfileDataset profiles every column in dataset order.
func ProfileDataset(ds *Dataset, det Detector) []ColumnProfile {
	out := make([]ColumnProfile, len(ds.Columns))
	for i, c := range ds.Columns {
		out[i] = ProfileColumn(c, det)
	}
	return out
}

func distinctKey(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixNano()
	}
	return v
}
