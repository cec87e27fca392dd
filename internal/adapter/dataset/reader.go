// Package dataset reads CSV and XLSX files into typed datasets. The first row
// is the header.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader dispatches on the file extension.
type Reader struct{}

func NewReader() *Reader { return &Reader{} }

func (r *Reader) Read(ctx context.Context, path string, opts port.ReadOptions) (*domain.Dataset, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv", ".txt":
		comma := ','
		if ext == ".tsv" {
			comma = '\t'
		}
		rows, err = readCSV(ctx, path, comma)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (want .csv, .tsv or .xlsx)", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no header row", path)
	}
	return domain.DatasetFromRecords(rows[0], dropBlankRows(rows[1:]))
}

func readCSV(ctx context.Context, path string, comma rune) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, fmt.Errorf("%s: sheet %q not found (have %s)", path, sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// dropBlankRows removes rows whose cells are all empty. Spreadsheets often
// carry formatted but empty trailing rows.
func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		if slices.ContainsFunc(r, func(c string) bool { return strings.TrimSpace(c) != "" }) {
			out = append(out, r)
		}
	}
	return out
}
