package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Config is the persisted union of a TableSchema and its index plan. The field
// order of the "fields" object is the column order.
type Config struct {
	TableConfig TableConfig                                 `json:"table_config"`
	Fields      *orderedmap.OrderedMap[string, FieldConfig] `json:"fields"`
	Indexes     IndexesConfig                               `json:"indexes"`
}

type TableConfig struct {
	TableName          string `json:"table_name"`
	Engine             string `json:"engine,omitempty"`
	Charset            string `json:"charset,omitempty"`
	Collate            string `json:"collate,omitempty"`
	Comment            string `json:"comment,omitempty"`
	AutoIncrementStart int64  `json:"auto_increment_start,omitempty"`
}

type FieldConfig struct {
	MySQLType     string      `json:"mysql_type"`
	Nullable      bool        `json:"nullable"`
	Default       any         `json:"default"`
	SpecialType   SpecialType `json:"special_type"`
	Comment       string      `json:"comment"`
	AutoIncrement bool        `json:"auto_increment,omitempty"`
}

type IndexesConfig struct {
	PrimaryKey      []string   `json:"primary_key"`
	UniqueKeys      [][]string `json:"unique_keys"`
	NormalIndexes   []string   `json:"normal_indexes"`
	FulltextIndexes []string   `json:"fulltext_indexes"`
}

// UnmarshalJSON rejects unknown keys and requires mysql_type, nullable and a
// non-empty special_type, so a saved config re-encodes to the same bytes.
func (f *FieldConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		MySQLType     *string `json:"mysql_type"`
		Nullable      *bool   `json:"nullable"`
		Default       any     `json:"default"`
		SpecialType   *string `json:"special_type"`
		Comment       string  `json:"comment"`
		AutoIncrement bool    `json:"auto_increment"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.MySQLType == nil || *raw.MySQLType == "" {
		return errors.New("mysql_type is required")
	}
	if raw.Nullable == nil {
		return errors.New("nullable is required")
	}
	if raw.SpecialType == nil || *raw.SpecialType == "" {
		return errors.New("special_type is required")
	}
	st, err := ParseSpecialType(*raw.SpecialType)
	if err != nil {
		return err
	}
	*f = FieldConfig{
		MySQLType:     *raw.MySQLType,
		Nullable:      *raw.Nullable,
		Default:       raw.Default,
		SpecialType:   st,
		Comment:       raw.Comment,
		AutoIncrement: raw.AutoIncrement,
	}
	return nil
}

// DecodeConfig reads a config strictly: unknown keys at any level, trailing
// data, and structural problems are all errors wrapping ErrInvalidConfig.
func DecodeConfig(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after config object", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EncodeConfig writes cfg as indented JSON without HTML escaping.
func EncodeConfig(w io.Writer, cfg *Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Validate checks the structure needed to derive a TableSchema. Index entries
// referencing unknown columns are left to the index planner.
func (c *Config) Validate() error {
	if c.Fields == nil || c.Fields.Len() == 0 {
		return fmt.Errorf("%w: fields must not be empty", ErrInvalidConfig)
	}
	return c.Schema().Validate()
}

// Schema derives the TableSchema. It performs no inference.
func (c *Config) Schema() *TableSchema {
	tc := c.TableConfig
	s := &TableSchema{
		Name:               tc.TableName,
		Engine:             tc.Engine,
		Charset:            tc.Charset,
		Collate:            tc.Collate,
		Comment:            tc.Comment,
		AutoIncrementStart: tc.AutoIncrementStart,
		PrimaryKey:         slices.Clone(c.Indexes.PrimaryKey),
	}
	if c.Fields != nil {
		for pair := c.Fields.Oldest(); pair != nil; pair = pair.Next() {
			f := pair.Value
			s.Columns = append(s.Columns, ColumnDescriptor{
				Name:          pair.Key,
				StorageType:   f.MySQLType,
				Nullable:      f.Nullable,
				Default:       f.Default,
				Comment:       f.Comment,
				SpecialType:   f.SpecialType,
				AutoIncrement: f.AutoIncrement,
			})
		}
	}
	return s
}

// IndexIntents returns the declared indexes as planner input.
func (c *Config) IndexIntents() IndexIntents {
	return IndexIntents{
		PrimaryKey:      c.Indexes.PrimaryKey,
		UniqueKeys:      c.Indexes.UniqueKeys,
		NormalIndexes:   c.Indexes.NormalIndexes,
		FulltextIndexes: c.Indexes.FulltextIndexes,
	}
}

// NewConfig serializes a schema and plan. Config -> Schema -> NewConfig is the identity
// for any valid config whose index entries all survive planning.
func NewConfig(schema *TableSchema, plan IndexPlan) *Config {
	fields := orderedmap.New[string, FieldConfig](len(schema.Columns))
	for _, c := range schema.Columns {
		st := c.SpecialType
		if st == "" {
			st = SpecialNone
		}
		fields.Set(c.Name, FieldConfig{
			MySQLType:     c.StorageType,
			Nullable:      c.Nullable,
			Default:       c.Default,
			SpecialType:   st,
			Comment:       c.Comment,
			AutoIncrement: c.AutoIncrement,
		})
	}
	return &Config{
		TableConfig: TableConfig{
			TableName:          schema.Name,
			Engine:             schema.Engine,
			Charset:            schema.Charset,
			Collate:            schema.Collate,
			Comment:            schema.Comment,
			AutoIncrementStart: schema.AutoIncrementStart,
		},
		Fields: fields,
		Indexes: IndexesConfig{
			PrimaryKey:      nonNil(plan.PrimaryKey),
			UniqueKeys:      nonNilTuples(plan.UniqueKeys),
			NormalIndexes:   nonNil(plan.NormalIndexes),
			FulltextIndexes: nonNil(plan.FulltextIndexes),
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func nonNilTuples(s [][]string) [][]string {
	out := make([][]string, len(s))
	for i, t := range s {
		out[i] = nonNil(t)
	}
	return out
}
