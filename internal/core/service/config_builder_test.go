package service

import (
	"context"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() *ConfigBuilder {
	return NewConfigBuilder(domain.NewDetector(), domain.InferOptions{}, testLogger())
}

func TestConfigBuilder_Build(t *testing.T) {
	res, err := newTestBuilder().Build(context.Background(), leadsDataset(t, 20), "leads", port.TablePolicy{})
	require.NoError(t, err)

	names := make([]string, len(res.Schema.Columns))
	for i, c := range res.Schema.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "name", "email", "phone", "score", "website", "created_at", "updated_at"}, names)

	byName := func(name string) domain.ColumnDescriptor {
		c, ok := res.Schema.Column(name)
		require.True(t, ok, name)
		return c
	}
	assert.True(t, byName("id").AutoIncrement)
	assert.Equal(t, "VARCHAR(255)", byName("email").StorageType)
	assert.Equal(t, domain.SpecialEmail, byName("email").SpecialType)
	assert.Equal(t, "VARCHAR(20)", byName("phone").StorageType)
	assert.Equal(t, domain.SpecialPhone, byName("phone").SpecialType)
	assert.Equal(t, domain.TypeText, byName("website").StorageType)
	assert.Equal(t, domain.SpecialURL, byName("website").SpecialType)
	assert.Equal(t, domain.TypeTinyInt, byName("score").StorageType)
	assert.True(t, byName("name").Nullable)
	assert.Equal(t, "name", byName("name").Comment)
	assert.Equal(t, domain.DefaultCurrentTimestampOnUpdate, byName("updated_at").Default)

	assert.Equal(t, domain.DefaultEngine, res.Schema.Engine)
	assert.Equal(t, []string{"id"}, res.Plan.PrimaryKey)
	assert.Contains(t, res.Plan.UniqueKeys, []string{"email"})
	assert.Contains(t, res.Plan.NormalIndexes, "created_at")
	assert.Contains(t, res.Plan.NormalIndexes, "updated_at")
	assert.Contains(t, res.Plan.FulltextIndexes, "website")

	require.NotNil(t, res.Config)
	require.NoError(t, res.Config.Validate())
	assert.Equal(t, "leads", res.Config.TableConfig.TableName)
	assert.Equal(t, len(res.Schema.Columns), res.Config.Fields.Len())
}

func TestConfigBuilder_AmbiguousColumnFallsBack(t *testing.T) {
	ds, err := domain.DatasetFromRecords([]string{"name", "notes"}, [][]string{{"Ann", ""}, {"Bob", ""}})
	require.NoError(t, err)

	res, err := newTestBuilder().Build(context.Background(), ds, "people", port.TablePolicy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, res.Ambiguous)

	notes, ok := res.Schema.Column("notes")
	require.True(t, ok)
	assert.Equal(t, domain.TypeLongText, notes.StorageType)
	assert.True(t, notes.Nullable)
}

func TestConfigBuilder_InferNullability(t *testing.T) {
	ds, err := domain.DatasetFromRecords([]string{"name", "age", "city"}, [][]string{
		{"Ann", "31", "Oslo"},
		{"Bob", "42", ""},
	})
	require.NoError(t, err)

	res, err := newTestBuilder().Build(context.Background(), ds, "people", port.TablePolicy{InferNullability: true})
	require.NoError(t, err)

	name, _ := res.Schema.Column("name")
	assert.False(t, name.Nullable)
	assert.Equal(t, "", name.Default)

	age, _ := res.Schema.Column("age")
	assert.False(t, age.Nullable)
	assert.Equal(t, float64(0), age.Default)

	city, _ := res.Schema.Column("city")
	assert.True(t, city.Nullable)
	assert.Nil(t, city.Default)
}

func TestConfigBuilder_PolicyOverrides(t *testing.T) {
	required := true
	pol := port.TablePolicy{
		Comment: "crm leads",
		Columns: map[string]port.ColumnPolicy{
			"score":   {StorageType: "INT", Required: &required, Comment: "lead score", Default: float64(50), HasDefault: true},
			"website": {SpecialType: domain.SpecialNone},
		},
		NormalIndexes: []string{"phone"},
		SkipIndexes:   []string{"website", "updated_at"},
	}

	res, err := newTestBuilder().Build(context.Background(), leadsDataset(t, 20), "leads", pol)
	require.NoError(t, err)
	assert.Equal(t, "crm leads", res.Schema.Comment)

	score, _ := res.Schema.Column("score")
	assert.Equal(t, "INT", score.StorageType)
	assert.False(t, score.Nullable)
	assert.Equal(t, "lead score", score.Comment)
	assert.Equal(t, float64(50), score.Default)

	website, _ := res.Schema.Column("website")
	assert.Equal(t, domain.SpecialNone, website.SpecialType)

	assert.Contains(t, res.Plan.NormalIndexes, "phone")
	assert.NotContains(t, res.Plan.NormalIndexes, "updated_at")
	assert.NotContains(t, res.Plan.FulltextIndexes, "website")
	assert.NotContains(t, res.Plan.UniqueKeys, []string{"website"})
}

func TestConfigBuilder_PolicyIndexOnUnknownColumn(t *testing.T) {
	pol := port.TablePolicy{UniqueKeys: [][]string{{"email", "ghost"}}}

	res, err := newTestBuilder().Build(context.Background(), leadsDataset(t, 5), "leads", pol)
	require.NoError(t, err)
	require.NotEmpty(t, res.IndexIssues)
	assert.ErrorIs(t, res.IndexIssues[0], domain.ErrIndexDefinition)
	assert.NotContains(t, res.Plan.UniqueKeys, []string{"email", "ghost"})
}

func TestConfigBuilder_EmptyDataset(t *testing.T) {
	_, err := newTestBuilder().Build(context.Background(), &domain.Dataset{}, "x", port.TablePolicy{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestConfigBuilder_DefaultTableName(t *testing.T) {
	res, err := newTestBuilder().Build(context.Background(), leadsDataset(t, 2), "", port.TablePolicy{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTableName, res.Schema.Name)
}
