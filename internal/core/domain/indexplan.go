package domain

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxIndexPrefix is the largest key prefix applied to large-text columns.
const MaxIndexPrefix = 255

// IndexKind orders index creation: unique keys, then normal, then fulltext.
type IndexKind string

const (
	IndexUnique   IndexKind = "unique"
	IndexNormal   IndexKind = "normal"
	IndexFulltext IndexKind = "fulltext"
)

// IndexIntents are the caller or config declared wishes, before validation.
type IndexIntents struct {
	PrimaryKey      []string
	UniqueKeys      [][]string
	NormalIndexes   []string
	FulltextIndexes []string
}

// IndexPlan is the validated index set for a table.
type IndexPlan struct {
	PrimaryKey      []string
	UniqueKeys      [][]string
	NormalIndexes   []string
	FulltextIndexes []string
}

// IndexColumn is one key part of an index. PrefixLength is zero when the whole
// column is indexed.
type IndexColumn struct {
	Name         string
	PrefixLength int
}

// IndexSpec is a single CREATE INDEX statement in dialect-neutral form.
type IndexSpec struct {
	Name    string
	Kind    IndexKind
	Table   string
	Columns []IndexColumn
}

// IndexIssue records an intent that was dropped from the plan.
type IndexIssue struct {
	Kind    IndexKind `json:"kind"`
	Columns []string  `json:"columns"`
	Reason  string    `json:"reason"`
}

func (i IndexIssue) Error() string {
	return fmt.Sprintf("%s index on (%s): %s", i.Kind, strings.Join(i.Columns, ", "), i.Reason)
}

func (i IndexIssue) Unwrap() error { return ErrIndexDefinition }

// PlanIndexes validates intents against the schema. Invalid intents are skipped and
// reported; the rest of the plan proceeds. Duplicate intents collapse to one.
func PlanIndexes(schema *TableSchema, intents IndexIntents) (IndexPlan, []IndexIssue) {
	var issues []IndexIssue
	plan := IndexPlan{
		PrimaryKey:      slices.Clone(schema.PrimaryKey),
		UniqueKeys:      [][]string{},
		NormalIndexes:   []string{},
		FulltextIndexes: []string{},
	}
	if len(intents.PrimaryKey) > 0 && !slices.Equal(intents.PrimaryKey, schema.PrimaryKey) {
		issues = append(issues, IndexIssue{
			Kind:    IndexUnique,
			Columns: intents.PrimaryKey,
			Reason:  fmt.Sprintf("primary key is fixed by the schema as (%s)", strings.Join(schema.PrimaryKey, ", ")),
		})
	}

	seenTuples := make(map[string]bool)
	for _, tuple := range intents.UniqueKeys {
		if len(tuple) == 0 {
			continue
		}
		if missing := missingColumns(schema, tuple); len(missing) > 0 {
			issues = append(issues, IndexIssue{Kind: IndexUnique, Columns: tuple, Reason: "unknown column " + strings.Join(missing, ", ")})
			continue
		}
		key := strings.Join(tuple, "\x00")
		if seenTuples[key] {
			continue
		}
		seenTuples[key] = true
		plan.UniqueKeys = append(plan.UniqueKeys, slices.Clone(tuple))
	}

	seenNormal := make(map[string]bool)
	for _, col := range intents.NormalIndexes {
		if col == "" || seenNormal[col] {
			continue
		}
		if _, ok := schema.Column(col); !ok {
			issues = append(issues, IndexIssue{Kind: IndexNormal, Columns: []string{col}, Reason: "unknown column " + col})
			continue
		}
		seenNormal[col] = true
		plan.NormalIndexes = append(plan.NormalIndexes, col)
	}

	seenFulltext := make(map[string]bool)
	for _, col := range intents.FulltextIndexes {
		if col == "" || seenFulltext[col] {
			continue
		}
		c, ok := schema.Column(col)
		if !ok {
			issues = append(issues, IndexIssue{Kind: IndexFulltext, Columns: []string{col}, Reason: "unknown column " + col})
			continue
		}
		if !IsTextType(c.StorageType) {
			issues = append(issues, IndexIssue{Kind: IndexFulltext, Columns: []string{col}, Reason: fmt.Sprintf("column type %s is not text", c.StorageType)})
			continue
		}
		seenFulltext[col] = true
		plan.FulltextIndexes = append(plan.FulltextIndexes, col)
	}

	return plan, issues
}

// Specs expands the plan into index statements in creation order. Large-text
// key parts carry MaxIndexPrefix.
func (p IndexPlan) Specs(schema *TableSchema) []IndexSpec {
	var specs []IndexSpec
	for i, tuple := range p.UniqueKeys {
		specs = append(specs, IndexSpec{
			Name:    indexName(fmt.Sprintf("uk_%s_%d", schema.Name, i+1)),
			Kind:    IndexUnique,
			Table:   schema.Name,
			Columns: keyParts(schema, tuple),
		})
	}
	for _, col := range p.NormalIndexes {
		specs = append(specs, IndexSpec{
			Name:    indexName(fmt.Sprintf("idx_%s_%s", schema.Name, col)),
			Kind:    IndexNormal,
			Table:   schema.Name,
			Columns: keyParts(schema, []string{col}),
		})
	}
	for _, col := range p.FulltextIndexes {
		specs = append(specs, IndexSpec{
			Name:    indexName(fmt.Sprintf("ft_%s_%s", schema.Name, col)),
			Kind:    IndexFulltext,
			Table:   schema.Name,
			Columns: keyParts(schema, []string{col}),
		})
	}
	return specs
}

// Intents converts a plan back to intents, used when a persisted plan is re-planned.
func (p IndexPlan) Intents() IndexIntents {
	return IndexIntents{
		PrimaryKey:      p.PrimaryKey,
		UniqueKeys:      p.UniqueKeys,
		NormalIndexes:   p.NormalIndexes,
		FulltextIndexes: p.FulltextIndexes,
	}
}

// SuggestIndexIntents derives intents from column statistics: near-unique columns
// become unique keys, selective columns normal indexes, unbounded text columns
// fulltext indexes. created_at and updated_at are always indexed.
func SuggestIndexIntents(profiles []ColumnProfile, columns map[string]ColumnDescriptor) IndexIntents {
	intents := IndexIntents{
		PrimaryKey:    []string{ColumnID},
		UniqueKeys:    [][]string{},
		NormalIndexes: []string{ColumnCreatedAt, ColumnUpdatedAt},
	}
	for _, p := range profiles {
		desc, ok := columns[p.Name]
		if !ok {
			continue
		}
		switch ClassifyUniqueness(p.UniquePercentage()) {
		case CardinalityUnique:
			intents.UniqueKeys = append(intents.UniqueKeys, []string{desc.Name})
		case CardinalitySelective:
			intents.NormalIndexes = append(intents.NormalIndexes, desc.Name)
		}
		switch BaseType(desc.StorageType) {
		case TypeText, TypeLongText:
			intents.FulltextIndexes = append(intents.FulltextIndexes, desc.Name)
		}
	}
	return intents
}

// indexName keeps generated names within the identifier limit. Long names are
// cut and suffixed with a hash of the full name so they stay distinct.
func indexName(name string) string {
	if utf8.RuneCountInString(name) <= maxIdentifierLength {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return truncateRunes(name, maxIdentifierLength-len(suffix)) + suffix
}

func keyParts(schema *TableSchema, cols []string) []IndexColumn {
	out := make([]IndexColumn, len(cols))
	for i, name := range cols {
		out[i] = IndexColumn{Name: name}
		if c, ok := schema.Column(name); ok && IsLargeText(c.StorageType) {
			out[i].PrefixLength = MaxIndexPrefix
		}
	}
	return out
}

func missingColumns(schema *TableSchema, cols []string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := schema.Column(c); !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
