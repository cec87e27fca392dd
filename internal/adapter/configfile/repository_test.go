package configfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *domain.Config {
	schema := &domain.TableSchema{
		Name:               "leads",
		Engine:             domain.DefaultEngine,
		Charset:            domain.DefaultCharset,
		Collate:            domain.DefaultCollate,
		Comment:            "leads <imported>",
		AutoIncrementStart: 1,
		Columns: []domain.ColumnDescriptor{
			{Name: "id", StorageType: "BIGINT", AutoIncrement: true, SpecialType: domain.SpecialPrimaryKey, Comment: "id"},
			{Name: "zeta", StorageType: "VARCHAR(60)", Nullable: true, SpecialType: domain.SpecialNone, Comment: "zeta"},
			{Name: "alpha", StorageType: "INT", Default: float64(0), SpecialType: domain.SpecialNone, Comment: "alpha"},
		},
		PrimaryKey: []string{"id"},
	}
	return domain.NewConfig(schema, domain.IndexPlan{PrimaryKey: []string{"id"}, NormalIndexes: []string{"alpha"}})
}

func TestRepository_SaveLoad(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "configs")
	repo := NewRepository(dir)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testConfig()))
	assert.Equal(t, filepath.Join(dir, "leads.json"), repo.Location("leads"))

	data, err := os.ReadFile(repo.Location("leads"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"comment": "leads <imported>"`)

	got, err := repo.Load(ctx, "leads")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "zeta", "alpha"}, got.Schema().ColumnNames())
	assert.Equal(t, []string{"alpha"}, got.Indexes.NormalIndexes)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestRepository_LoadMissing(t *testing.T) {
	t.Parallel()
	repo := NewRepository(t.TempDir())

	_, err := repo.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_LoadInvalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"table_config": {"table_name": "bad"}, "extra": 1}`), 0o644))

	_, err := NewRepository(dir).Load(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRepository_RejectsUnsafeNames(t *testing.T) {
	t.Parallel()
	repo := NewRepository(t.TempDir())

	_, err := repo.Load(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	cfg := testConfig()
	cfg.TableConfig.TableName = "../x"
	assert.Error(t, repo.Save(context.Background(), cfg))
}

func TestRepository_SaveOverwrites(t *testing.T) {
	t.Parallel()
	repo := NewRepository(t.TempDir())
	ctx := context.Background()

	cfg := testConfig()
	require.NoError(t, repo.Save(ctx, cfg))
	cfg.TableConfig.Comment = "edited"
	require.NoError(t, repo.Save(ctx, cfg))

	got, err := repo.Load(ctx, "leads")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.TableConfig.Comment)
}
