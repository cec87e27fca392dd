package port

import "context"

// SinkField is the column type vocabulary of a remote table sink.
type SinkField string

const (
	SinkText         SinkField = "text"
	SinkNumber       SinkField = "number"
	SinkURL          SinkField = "url"
	SinkDate         SinkField = "date"
	SinkCheckbox     SinkField = "checkbox"
	SinkSingleSelect SinkField = "single_select"
	SinkMultiSelect  SinkField = "multi_select"
	SinkUser         SinkField = "user"
)

// SinkWrite is a batch of rows addressed to a named remote table.
type SinkWrite struct {
	Target string
	// Fields maps a column to its sink type. Unlisted columns are text.
	Fields map[string]SinkField
	Rows   []map[string]any
}

// SinkResult counts what the sink accepted.
type SinkResult struct {
	Target  string `json:"target"`
	Written int    `json:"written"`
	Batches int    `json:"batches"`
}

// RowSink writes rows to an external table service.
type RowSink interface {
	WriteRows(ctx context.Context, w SinkWrite) (*SinkResult, error)
}
