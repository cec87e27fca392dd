// Package configfile persists table configs as one JSON file per table.
package configfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
)

// Repository stores configs under Dir as <table>.json.
type Repository struct {
	dir string
}

func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Location returns the file path of table's config.
func (r *Repository) Location(table string) string {
	return filepath.Join(r.dir, table+".json")
}

// Load reads and strictly decodes the config of table. A missing file is
// domain.ErrNotFound.
func (r *Repository) Load(_ context.Context, table string) (*domain.Config, error) {
	if err := checkName(table); err != nil {
		return nil, err
	}
	path := r.Location(table)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config for table %q: %w", table, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := domain.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg through a temp file and rename, so readers never see a
// partial file.
func (r *Repository) Save(_ context.Context, cfg *domain.Config) error {
	table := cfg.TableConfig.TableName
	if err := checkName(table); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := domain.EncodeConfig(&buf, cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.dir, "."+table+".*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.Location(table)); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// checkName keeps table names usable as a single file name inside dir.
func checkName(table string) error {
	if err := domain.ValidateIdentifier(table); err != nil {
		return err
	}
	if strings.ContainsAny(table, `/\`) || strings.HasPrefix(table, ".") {
		return fmt.Errorf("%w: table name %q is not a valid file name", domain.ErrInvalidConfig, table)
	}
	return nil
}
