package port

import (
	"context"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
)

// ReadOptions select what part of a source file becomes the dataset.
type ReadOptions struct {
	// Sheet names the spreadsheet tab. Empty means the first sheet.
	Sheet string
}

// DatasetReader turns a tabular file into a typed dataset.
type DatasetReader interface {
	Read(ctx context.Context, path string, opts ReadOptions) (*domain.Dataset, error)
}

// ConfigRepository persists one Config per table.
type ConfigRepository interface {
	// Load returns domain.ErrNotFound when the table has no persisted config.
	Load(ctx context.Context, table string) (*domain.Config, error)
	Save(ctx context.Context, cfg *domain.Config) error
	Location(table string) string
}

// OrderByParser validates ORDER BY clauses.
type OrderByParser interface {
	Parse(clause string) ([]domain.SortKey, error)
}
