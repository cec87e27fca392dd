package mysql

import (
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *domain.TableSchema {
	return &domain.TableSchema{
		Name:               "contacts",
		Engine:             "InnoDB",
		Charset:            "utf8mb4",
		Collate:            "utf8mb4_unicode_ci",
		Comment:            "it's contacts",
		AutoIncrementStart: 100,
		Columns: []domain.ColumnDescriptor{
			{Name: "id", StorageType: "BIGINT", AutoIncrement: true, SpecialType: domain.SpecialPrimaryKey, Comment: "id"},
			{Name: "name", StorageType: "VARCHAR(60)", Default: "", Comment: "name"},
			{Name: "age", StorageType: "TINYINT", Nullable: true, Comment: "age"},
			{Name: "active", StorageType: "BOOLEAN", Default: false},
			{Name: "notes", StorageType: "TEXT", Default: "", Comment: `c:\path`},
			{Name: "created_at", StorageType: "TIMESTAMP", Default: domain.DefaultCurrentTimestamp, SpecialType: domain.SpecialTimestamp},
			{Name: "updated_at", StorageType: "TIMESTAMP", Default: domain.DefaultCurrentTimestampOnUpdate, SpecialType: domain.SpecialTimestamp},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	stmts := Dialect{}.CreateTableSQL(testSchema())
	require.Len(t, stmts, 1)

	want := "CREATE TABLE `contacts` (\n" +
		"  `id` BIGINT NOT NULL AUTO_INCREMENT COMMENT 'id',\n" +
		"  `name` VARCHAR(60) NOT NULL DEFAULT '' COMMENT 'name',\n" +
		"  `age` TINYINT NULL COMMENT 'age',\n" +
		"  `active` BOOLEAN NOT NULL DEFAULT FALSE,\n" +
		"  `notes` TEXT NOT NULL COMMENT 'c:\\\\path',\n" +
		"  `created_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"  `updated_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=100 DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci COMMENT='it''s contacts'"
	assert.Equal(t, want, stmts[0])
}

func TestCreateTableSQL_NumericDefault(t *testing.T) {
	t.Parallel()

	schema := &domain.TableSchema{
		Name: "t",
		Columns: []domain.ColumnDescriptor{
			{Name: "score", StorageType: "DOUBLE", Default: float64(0)},
			{Name: "ratio", StorageType: "FLOAT", Default: 1.5},
		},
	}
	stmts := Dialect{}.CreateTableSQL(schema)
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE `t` (\n  `score` DOUBLE NOT NULL DEFAULT 0,\n  `ratio` FLOAT NOT NULL DEFAULT 1.5\n)", stmts[0])
}

func TestCreateIndexSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec domain.IndexSpec
		want string
	}{
		{
			name: "unique with prefix",
			spec: domain.IndexSpec{Name: "uk_t_1", Kind: domain.IndexUnique, Table: "t", Columns: []domain.IndexColumn{
				{Name: "a"}, {Name: "notes", PrefixLength: 255},
			}},
			want: "CREATE UNIQUE INDEX `uk_t_1` ON `t` (`a`, `notes`(255))",
		},
		{
			name: "normal",
			spec: domain.IndexSpec{Name: "idx_t_a", Kind: domain.IndexNormal, Table: "t", Columns: []domain.IndexColumn{{Name: "a"}}},
			want: "CREATE INDEX `idx_t_a` ON `t` (`a`)",
		},
		{
			name: "fulltext drops prefix",
			spec: domain.IndexSpec{Name: "ft_t_notes", Kind: domain.IndexFulltext, Table: "t", Columns: []domain.IndexColumn{
				{Name: "notes", PrefixLength: 255},
			}},
			want: "CREATE FULLTEXT INDEX `ft_t_notes` ON `t` (`notes`)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Dialect{}.CreateIndexSQL(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateIndexSQL_PlannedTextIndexes(t *testing.T) {
	t.Parallel()

	schema := testSchema()
	plan, issues := domain.PlanIndexes(schema, domain.IndexIntents{
		UniqueKeys:      [][]string{{"name", "notes"}},
		FulltextIndexes: []string{"notes"},
	})
	require.Empty(t, issues)
	specs := plan.Specs(schema)
	require.Len(t, specs, 2)

	// The plan keeps the prefix on every large-text key part.
	unique, fulltext := specs[0], specs[1]
	require.Equal(t, domain.IndexFulltext, fulltext.Kind)
	require.Len(t, fulltext.Columns, 1)
	assert.Equal(t, domain.MaxIndexPrefix, fulltext.Columns[0].PrefixLength)
	assert.Equal(t, domain.MaxIndexPrefix, unique.Columns[1].PrefixLength)

	got, err := Dialect{}.CreateIndexSQL(unique)
	require.NoError(t, err)
	assert.Equal(t, "CREATE UNIQUE INDEX `uk_contacts_1` ON `contacts` (`name`, `notes`(255))", got)

	// FULLTEXT rejects key prefixes, so the DDL omits it.
	got, err = Dialect{}.CreateIndexSQL(fulltext)
	require.NoError(t, err)
	assert.Equal(t, "CREATE FULLTEXT INDEX `ft_contacts_notes` ON `contacts` (`notes`)", got)
	assert.NotContains(t, got, "(255)")
}

func TestCreateIndexSQL_Errors(t *testing.T) {
	t.Parallel()

	_, err := Dialect{}.CreateIndexSQL(domain.IndexSpec{Name: "x", Kind: domain.IndexNormal, Table: "t"})
	assert.ErrorIs(t, err, domain.ErrIndexDefinition)

	_, err = Dialect{}.CreateIndexSQL(domain.IndexSpec{Name: "x", Kind: "spatial", Table: "t", Columns: []domain.IndexColumn{{Name: "a"}}})
	assert.ErrorIs(t, err, domain.ErrIndexDefinition)
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "`a``b`", Dialect{}.QuoteIdent("a`b"))
}

func TestParseDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dsn    string
		addr   string
		user   string
		dbName string
	}{
		{name: "driver dsn", dsn: "app:secret@tcp(db:3306)/sales", addr: "db:3306", user: "app", dbName: "sales"},
		{name: "url", dsn: "mysql://app:secret@db:3307/sales", addr: "db:3307", user: "app", dbName: "sales"},
		{name: "url default port", dsn: "mysql://app@db/sales", addr: "db:3306", user: "app", dbName: "sales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := ParseDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.Addr)
			assert.Equal(t, tt.user, cfg.User)
			assert.Equal(t, tt.dbName, cfg.DBName)
			assert.True(t, cfg.ParseTime)
			assert.Equal(t, "utf8mb4", cfg.Params["charset"])
		})
	}
}
