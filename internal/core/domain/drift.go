package domain

import (
	"fmt"
	"strings"
)

// Severity ranks a drift finding.
//   - BLOCK: the load is likely to fail or lose data
//   - WARN: risky but loads may still succeed
//   - INFO: harmless
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityBlock Severity = "BLOCK"
)

// DriftKind names the difference between the expected schema and a live table.
type DriftKind string

const (
	DriftColumnMissing     DriftKind = "column_missing"
	DriftColumnExtra       DriftKind = "column_extra"
	DriftTypeChanged       DriftKind = "type_changed"
	DriftNullableToNotNull DriftKind = "nullable_to_notnull"
)

// SeverityForDrift maps a drift kind to its severity.
func SeverityForDrift(kind DriftKind) Severity {
	switch kind {
	case DriftColumnMissing, DriftNullableToNotNull:
		return SeverityBlock
	case DriftTypeChanged:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// LiveColumn is a column as reported by the destination's catalog.
type LiveColumn struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Key      string  `json:"key,omitempty"`
	Default  *string `json:"default,omitempty"`
	Extra    string  `json:"extra,omitempty"`
}

// Drift is one difference between the schema and the live table.
type Drift struct {
	Kind     DriftKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Column   string    `json:"column"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

func (d Drift) String() string {
	switch d.Kind {
	case DriftTypeChanged:
		return fmt.Sprintf("%s %s: %s -> %s", d.Severity, d.Column, d.Expected, d.Actual)
	default:
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Column, d.Kind)
	}
}

// DiffColumns compares the schema against live columns. nativeType translates a
// configured type into the store's own spelling and may be nil. Types are compared
// on their base keyword only, since catalogs report sizes and aliases differently.
func DiffColumns(schema *TableSchema, live []LiveColumn, nativeType func(string) string) []Drift {
	if nativeType == nil {
		nativeType = func(t string) string { return t }
	}
	liveByName := make(map[string]LiveColumn, len(live))
	for _, c := range live {
		liveByName[strings.ToLower(c.Name)] = c
	}

	var drifts []Drift
	expected := make(map[string]bool, len(schema.Columns))
	for _, c := range schema.Columns {
		key := strings.ToLower(c.Name)
		expected[key] = true
		lc, ok := liveByName[key]
		if !ok {
			drifts = append(drifts, newDrift(DriftColumnMissing, c.Name, c.StorageType, ""))
			continue
		}
		if !sameBaseType(nativeType(c.StorageType), lc.Type) {
			drifts = append(drifts, newDrift(DriftTypeChanged, c.Name, c.StorageType, lc.Type))
		}
		if c.Nullable && !lc.Nullable {
			drifts = append(drifts, newDrift(DriftNullableToNotNull, c.Name, "NULL", "NOT NULL"))
		}
	}
	for _, lc := range live {
		if !expected[strings.ToLower(lc.Name)] {
			drifts = append(drifts, newDrift(DriftColumnExtra, lc.Name, "", lc.Type))
		}
	}
	return drifts
}

// MaxSeverity returns the highest severity in drifts, or "" when there are none.
func MaxSeverity(drifts []Drift) Severity {
	var out Severity
	for _, d := range drifts {
		switch {
		case d.Severity == SeverityBlock:
			return SeverityBlock
		case d.Severity == SeverityWarn:
			out = SeverityWarn
		case out == "":
			out = SeverityInfo
		}
	}
	return out
}

func newDrift(kind DriftKind, column, expected, actual string) Drift {
	return Drift{Kind: kind, Severity: SeverityForDrift(kind), Column: column, Expected: expected, Actual: actual}
}

// typeAliases folds catalog spellings onto the vocabulary used in configs.
var typeAliases = map[string]string{
	"INTEGER":                     TypeInt,
	"INT4":                        TypeInt,
	"INT8":                        TypeBigInt,
	"INT2":                        TypeSmallInt,
	"BOOL":                        TypeBoolean,
	"DOUBLE PRECISION":            TypeDouble,
	"FLOAT8":                      TypeDouble,
	"FLOAT4":                      TypeFloat,
	"REAL":                        TypeFloat,
	"CHARACTER VARYING":           "VARCHAR",
	"TIMESTAMP WITHOUT TIME ZONE": TypeTimestamp,
}

func sameBaseType(expected, actual string) bool {
	e := canonicalType(expected)
	a := canonicalType(actual)
	if e == a {
		return true
	}
	// MySQL reports BOOLEAN as TINYINT(1).
	if e == TypeBoolean && a == TypeTinyInt {
		return true
	}
	return false
}

func canonicalType(t string) string {
	up := strings.ToUpper(strings.TrimSpace(t))
	if i := strings.IndexByte(up, '('); i >= 0 {
		up = strings.TrimSpace(up[:i])
	}
	if alias, ok := typeAliases[up]; ok {
		return alias
	}
	base := BaseType(up)
	if alias, ok := typeAliases[base]; ok {
		return alias
	}
	return base
}
