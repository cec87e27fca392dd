package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"
	"github.com/jedib0t/go-pretty/v6/table"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// cell renders a value for terminal output; NULL is spelled out.
func cell(v any) any {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return x
	}
}

func renderRows(w io.Writer, res *port.QueryResult) {
	t := newTable(w, "")
	header := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range res.Rows {
		row := make(table.Row, len(res.Columns))
		for i, c := range res.Columns {
			row[i] = cell(r[c])
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintf(w, "%d rows\n", len(res.Rows))
}

func renderStats(w io.Writer, stats *port.TableStats) {
	fmt.Fprintf(w, "%s (%d rows)\n", stats.Table, stats.RowCount)
	t := newTable(w, "")
	t.AppendHeader(table.Row{"column", "type", "nullable", "key", "default", "extra", "special"})

	for _, c := range stats.Columns {
		def := "-"
		if c.Default != nil {
			def = *c.Default
		}
		special := ""
		if stats.Config != nil {
			if fc, ok := stats.Config.Fields.Get(c.Name); ok && fc.SpecialType != domain.SpecialNone {
				special = string(fc.SpecialType)
			}
		}
		t.AppendRow(table.Row{c.Name, c.Type, c.Nullable, c.Key, def, c.Extra, special})
	}
	t.Render()
	if stats.Config == nil {
		fmt.Fprintln(w, "no persisted config")
	}
}

func renderConfig(w io.Writer, cfg *domain.Config) {
	t := newTable(w, cfg.TableConfig.TableName)
	t.AppendHeader(table.Row{"field", "type", "nullable", "default", "special", "comment"})
	for pair := cfg.Fields.Oldest(); pair != nil; pair = pair.Next() {
		f := pair.Value
		def := "-"
		if f.Default != nil {
			def = fmt.Sprint(f.Default)
		}
		t.AppendRow(table.Row{pair.Key, f.MySQLType, f.Nullable, def, f.SpecialType, f.Comment})
	}
	t.Render()

	idx := cfg.Indexes
	unique := make([]string, len(idx.UniqueKeys))
	for i, cols := range idx.UniqueKeys {
		unique[i] = "(" + strings.Join(cols, ", ") + ")"
	}
	fmt.Fprintf(w, "primary key: %s\n", orDash(strings.Join(idx.PrimaryKey, ", ")))
	fmt.Fprintf(w, "unique: %s\n", orDash(strings.Join(unique, " ")))
	fmt.Fprintf(w, "normal: %s\n", orDash(strings.Join(idx.NormalIndexes, ", ")))
	fmt.Fprintf(w, "fulltext: %s\n", orDash(strings.Join(idx.FulltextIndexes, ", ")))
}

func renderInfer(w io.Writer, r *service.InferReport) {
	renderConfig(w, r.Config)
	if r.Reused {
		fmt.Fprintf(w, "reused config %s\n", r.ConfigPath)
	} else {
		fmt.Fprintf(w, "wrote config %s\n", r.ConfigPath)
	}
	for from, to := range r.Renamed {
		fmt.Fprintf(w, "renamed reserved column %s -> %s\n", from, to)
	}
	if len(r.Ambiguous) > 0 {
		fmt.Fprintf(w, "ambiguous columns stored as LONGTEXT: %s\n", strings.Join(r.Ambiguous, ", "))
	}
	for _, issue := range r.IndexIssues {
		fmt.Fprintf(w, "index skipped: %s\n", issue.Error())
	}
}

func renderIngest(w io.Writer, r *service.IngestReport) {
	renderInfer(w, r.Infer)
	if m := r.Migration; m != nil {
		fmt.Fprintf(w, "table %s %s\n", m.Table, m.State)
		if len(m.IndexesCreated) > 0 {
			fmt.Fprintf(w, "indexes created: %s\n", strings.Join(m.IndexesCreated, ", "))
		}
		for _, f := range m.IndexFailures {
			fmt.Fprintf(w, "index failed: %s\n", f.Error())
		}
		if len(m.Drift) > 0 {
			t := newTable(w, "drift")
			t.AppendHeader(table.Row{"column", "kind", "severity", "expected", "actual"})
			for _, d := range m.Drift {
				t.AppendRow(table.Row{d.Column, d.Kind, d.Severity, d.Expected, d.Actual})
			}
			t.Render()
		}
	}
	if l := r.Load; l != nil {
		t := newTable(w, "load "+r.RunID)
		t.AppendHeader(table.Row{"batch", "rows", "committed", "duration"})
		for _, b := range l.Batches {
			t.AppendRow(table.Row{b.Index + 1, fmt.Sprintf("%d-%d", b.Offset, b.Offset+b.Attempted-1), b.Committed, b.Duration.Round(time.Millisecond)})
		}
		t.AppendFooter(table.Row{"", l.Attempted, l.Committed, ""})
		t.Render()
		if len(l.Rejected) > 0 {
			fmt.Fprintf(w, "%d values rejected and stored as NULL\n", len(l.Rejected))
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
