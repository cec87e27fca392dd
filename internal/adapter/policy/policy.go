// Package policy loads operator overrides for inferred tables from YAML.
package policy

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"gopkg.in/yaml.v3"
)

// Policy maps table names to overrides.
//
//	tables:
//	  orders:
//	    comment: "Shop orders"
//	    infer_nullability: true
//	    columns:
//	      note: "Free-form note"      # plain string sets the comment
//	      amount:
//	        type: "DECIMAL(10,2)"
//	        required: true
//	        default: 0
//	      email:
//	        mask: partial
//	    indexes:
//	      unique: [[order_no]]
//	      normal: [status]
//	      fulltext: [note]
//	      skip: [memo]
type Policy struct {
	Tables map[string]TableOverride `yaml:"tables"`
}

type TableOverride struct {
	Comment          string                    `yaml:"comment"`
	InferNullability bool                      `yaml:"infer_nullability"`
	Columns          map[string]ColumnOverride `yaml:"columns"`
	Indexes          IndexOverride             `yaml:"indexes"`
}

type IndexOverride struct {
	Unique   [][]string `yaml:"unique"`
	Normal   []string   `yaml:"normal"`
	Fulltext []string   `yaml:"fulltext"`
	Skip     []string   `yaml:"skip"`
}

// ColumnOverride replaces inferred column properties. Unset fields keep the
// inferred value.
type ColumnOverride struct {
	Type        string          `yaml:"type"`
	Required    *bool           `yaml:"required"`
	Comment     string          `yaml:"comment"`
	SpecialType string          `yaml:"special_type"`
	Mask        domain.MaskType `yaml:"mask"`

	Default    any  `yaml:"-"`
	HasDefault bool `yaml:"-"`
}

// UnmarshalYAML accepts a plain string as shorthand for a comment.
//
//	columns:
//	  email: "Customer email"     # -> ColumnOverride{Comment: "Customer email"}
//	  amount:
//	    default: null             # explicit null default, HasDefault is set
func (co *ColumnOverride) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*co = ColumnOverride{Comment: value.Value}
		return nil
	}
	var raw struct {
		Type        string          `yaml:"type"`
		Required    *bool           `yaml:"required"`
		Comment     string          `yaml:"comment"`
		SpecialType string          `yaml:"special_type"`
		Mask        domain.MaskType `yaml:"mask"`
		Default     yaml.Node       `yaml:"default"`
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decoding column override: %w", err)
	}
	*co = ColumnOverride{
		Type:        raw.Type,
		Required:    raw.Required,
		Comment:     raw.Comment,
		SpecialType: raw.SpecialType,
		Mask:        raw.Mask,
	}
	if raw.Default.Kind != 0 {
		var v any
		if err := raw.Default.Decode(&v); err != nil {
			return fmt.Errorf("decoding default: %w", err)
		}
		co.Default, co.HasDefault = normalizeDefault(v), true
	}
	return nil
}

// normalizeDefault folds YAML integers into float64, the type JSON configs
// decode numbers to, so a default survives save and load unchanged.
func normalizeDefault(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return v
}

// TablePolicy implements port.PolicySource. Table names match case-insensitively.
func (p *Policy) TablePolicy(table string) (port.TablePolicy, bool) {
	if p == nil {
		return port.TablePolicy{}, false
	}
	to, ok := p.Tables[table]
	if !ok {
		for name, candidate := range p.Tables {
			if strings.EqualFold(name, table) {
				to, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return port.TablePolicy{}, false
	}

	out := port.TablePolicy{
		Comment:          to.Comment,
		InferNullability: to.InferNullability,
		Columns:          make(map[string]port.ColumnPolicy, len(to.Columns)),
		UniqueKeys:       to.Indexes.Unique,
		NormalIndexes:    to.Indexes.Normal,
		FulltextIndexes:  to.Indexes.Fulltext,
		SkipIndexes:      to.Indexes.Skip,
	}
	for name, c := range to.Columns {
		// Validated on load.
		st, _ := parseSpecialType(c.SpecialType)
		out.Columns[name] = port.ColumnPolicy{
			StorageType: c.Type,
			Required:    c.Required,
			Comment:     c.Comment,
			SpecialType: st,
			Default:     c.Default,
			HasDefault:  c.HasDefault,
			Mask:        c.Mask,
		}
	}
	return out, true
}

func parseSpecialType(s string) (domain.SpecialType, error) {
	if s == "" {
		return "", nil
	}
	return domain.ParseSpecialType(s)
}
