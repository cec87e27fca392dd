package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffColumns(t *testing.T) {
	t.Parallel()
	schema := &TableSchema{Name: "t", Columns: []ColumnDescriptor{
		{Name: "id", StorageType: TypeBigInt},
		{Name: "active", StorageType: TypeBoolean},
		{Name: "name", StorageType: "VARCHAR(60)", Nullable: true},
		{Name: "age", StorageType: TypeTinyInt},
		{Name: "email", StorageType: "VARCHAR(255)"},
	}}
	live := []LiveColumn{
		{Name: "id", Type: "bigint"},
		{Name: "active", Type: "tinyint(1)"},
		{Name: "name", Type: "varchar(80)"},
		{Name: "age", Type: "int"},
		{Name: "legacy", Type: "text", Nullable: true},
	}

	drifts := DiffColumns(schema, live, nil)
	require.Len(t, drifts, 4)

	byKind := make(map[DriftKind]Drift)
	for _, d := range drifts {
		byKind[d.Kind] = d
	}
	assert.Equal(t, "name", byKind[DriftNullableToNotNull].Column)
	assert.Equal(t, SeverityBlock, byKind[DriftNullableToNotNull].Severity)
	assert.Equal(t, "age", byKind[DriftTypeChanged].Column)
	assert.Equal(t, SeverityWarn, byKind[DriftTypeChanged].Severity)
	assert.Equal(t, "email", byKind[DriftColumnMissing].Column)
	assert.Equal(t, SeverityBlock, byKind[DriftColumnMissing].Severity)
	assert.Equal(t, "legacy", byKind[DriftColumnExtra].Column)
	assert.Equal(t, SeverityInfo, byKind[DriftColumnExtra].Severity)

	assert.Equal(t, SeverityBlock, MaxSeverity(drifts))
	assert.Equal(t, "WARN age: TINYINT -> int", byKind[DriftTypeChanged].String())
}

func TestDiffColumns_NativeType(t *testing.T) {
	t.Parallel()
	schema := &TableSchema{Name: "t", Columns: []ColumnDescriptor{
		{Name: "body", StorageType: TypeLongText},
		{Name: "score", StorageType: TypeDouble},
	}}
	live := []LiveColumn{
		{Name: "body", Type: "text"},
		{Name: "score", Type: "double precision"},
	}
	native := func(t string) string {
		if t == TypeLongText {
			return TypeText
		}
		return t
	}
	assert.Empty(t, DiffColumns(schema, live, native))
	assert.Len(t, DiffColumns(schema, live, nil), 1)
}

func TestDiffColumns_CaseInsensitiveNames(t *testing.T) {
	t.Parallel()
	schema := &TableSchema{Name: "t", Columns: []ColumnDescriptor{{Name: "City", StorageType: "VARCHAR(60)"}}}
	live := []LiveColumn{{Name: "city", Type: "character varying(60)"}}
	assert.Empty(t, DiffColumns(schema, live, nil))
}

func TestMaxSeverity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Severity(""), MaxSeverity(nil))
	assert.Equal(t, SeverityInfo, MaxSeverity([]Drift{{Severity: SeverityInfo}}))
	assert.Equal(t, SeverityWarn, MaxSeverity([]Drift{{Severity: SeverityInfo}, {Severity: SeverityWarn}, {Severity: SeverityInfo}}))
}

func TestDrift_String(t *testing.T) {
	t.Parallel()
	d := Drift{Kind: DriftColumnMissing, Severity: SeverityBlock, Column: "x"}
	assert.True(t, strings.HasPrefix(d.String(), "BLOCK x"))
}
