package port

import "github.com/guillermoBallester/tablesmith/internal/core/domain"

// ColumnPolicy overrides inferred properties of one source column. Zero values
// keep the inferred result.
type ColumnPolicy struct {
	StorageType string
	Required    *bool
	Comment     string
	SpecialType domain.SpecialType
	Default     any
	HasDefault  bool
	Mask        domain.MaskType
}

// TablePolicy holds operator overrides for one table.
type TablePolicy struct {
	Comment string
	// InferNullability marks columns without observed nulls NOT NULL instead of
	// leaving every source column nullable.
	InferNullability bool
	Columns          map[string]ColumnPolicy
	UniqueKeys       [][]string
	NormalIndexes    []string
	FulltextIndexes  []string
	// SkipIndexes suppresses every suggested index on these columns.
	SkipIndexes []string
}

// Masks returns the explicit column masks of the policy.
func (p TablePolicy) Masks() map[string]domain.MaskType {
	out := make(map[string]domain.MaskType)
	for name, c := range p.Columns {
		if c.Mask != "" {
			out[name] = c.Mask
		}
	}
	return out
}

// PolicySource looks up table overrides.
type PolicySource interface {
	TablePolicy(table string) (TablePolicy, bool)
}

// NoopPolicy has no overrides for any table.
type NoopPolicy struct{}

func (NoopPolicy) TablePolicy(string) (TablePolicy, bool) { return TablePolicy{}, false }
