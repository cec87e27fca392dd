package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for table, to := range pol.Tables {
		if table == "" {
			return fmt.Errorf("tables contains an empty key")
		}
		for col, co := range to.Columns {
			if col == "" {
				return fmt.Errorf("tables[%q].columns contains an empty key", table)
			}
			if !co.Mask.Valid() {
				return fmt.Errorf("tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", table, col, co.Mask)
			}
			if _, err := parseSpecialType(co.SpecialType); err != nil {
				return fmt.Errorf("tables[%q].columns[%q].special_type: %w", table, col, err)
			}
		}
		for i, tuple := range to.Indexes.Unique {
			if len(tuple) == 0 {
				return fmt.Errorf("tables[%q].indexes.unique[%d] is empty", table, i)
			}
		}
	}
	return nil
}
