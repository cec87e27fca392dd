package domain

import (
	"fmt"
	"strings"
)

// Table-level defaults applied when a config leaves them blank.
const (
	DefaultTableName          = "auto_generated_table"
	DefaultEngine             = "InnoDB"
	DefaultCharset            = "utf8mb4"
	DefaultCollate            = "utf8mb4_unicode_ci"
	DefaultTableComment       = "auto-generated table"
	DefaultAutoIncrementStart = 1
)

// Synthetic column names injected by the config builder.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// Default expressions recognised as SQL keywords rather than literals.
const (
	DefaultCurrentTimestamp         = "CURRENT_TIMESTAMP"
	DefaultCurrentTimestampOnUpdate = "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"
)

// ColumnDescriptor is a resolved destination column.
type ColumnDescriptor struct {
	Name          string
	StorageType   string
	Nullable      bool
	Default       any // nil, float64, int64, bool, string or one of the CURRENT_TIMESTAMP expressions
	Comment       string
	SpecialType   SpecialType
	AutoIncrement bool
}

// IsSynthetic reports whether the store, not the dataset, supplies this column's values.
func (c ColumnDescriptor) IsSynthetic() bool {
	return c.AutoIncrement || c.SpecialType == SpecialTimestamp
}

// TableSchema is the resolved shape of a destination table.
type TableSchema struct {
	Name               string
	Engine             string
	Charset            string
	Collate            string
	Comment            string
	AutoIncrementStart int64
	Columns            []ColumnDescriptor
	PrimaryKey         []string
}

// Column looks up a column by name.
func (s *TableSchema) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// ColumnNames returns column names in schema order.
func (s *TableSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate enforces that names are unique ignoring case and primary key columns exist and are NOT NULL.
func (s *TableSchema) Validate() error {
	if err := ValidateIdentifier(s.Name); err != nil {
		return fmt.Errorf("%w: table name: %w", ErrInvalidConfig, err)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: table %q has no columns", ErrInvalidConfig, s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if err := ValidateIdentifier(c.Name); err != nil {
			return fmt.Errorf("%w: column: %w", ErrInvalidConfig, err)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidConfig, c.Name)
		}
		seen[key] = true
		if strings.TrimSpace(c.StorageType) == "" {
			return fmt.Errorf("%w: column %q has no storage type", ErrInvalidConfig, c.Name)
		}
		if !c.SpecialType.Valid() {
			return fmt.Errorf("%w: column %q: invalid special_type %q", ErrInvalidConfig, c.Name, c.SpecialType)
		}
	}
	for _, pk := range s.PrimaryKey {
		c, ok := s.Column(pk)
		if !ok {
			return fmt.Errorf("%w: primary key column %q does not exist", ErrInvalidConfig, pk)
		}
		if c.Nullable {
			return fmt.Errorf("%w: primary key column %q must not be nullable", ErrInvalidConfig, pk)
		}
	}
	return nil
}

// BaseType returns the upper-cased type keyword without size, e.g. "VARCHAR" for "varchar(60)".
func BaseType(storageType string) string {
	t := strings.ToUpper(strings.TrimSpace(storageType))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return t
}

// IsLargeText reports whether the type is an unbounded text type that needs an
// index prefix length.
func IsLargeText(storageType string) bool {
	switch BaseType(storageType) {
	case "TEXT", "MEDIUMTEXT", "LONGTEXT", "TINYTEXT":
		return true
	}
	return false
}

// IsTextType reports whether the type stores character data.
func IsTextType(storageType string) bool {
	switch BaseType(storageType) {
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT":
		return true
	}
	return false
}

// IsNumericType reports whether the type stores numbers.
func IsNumericType(storageType string) bool {
	switch BaseType(storageType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL":
		return true
	}
	return false
}

// IsBooleanType reports whether the type stores booleans.
func IsBooleanType(storageType string) bool {
	switch BaseType(storageType) {
	case "BOOLEAN", "BOOL":
		return true
	}
	return false
}
