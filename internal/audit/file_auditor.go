package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record.
type fileEntry struct {
	Timestamp  string  `json:"ts"`
	RunID      string  `json:"run_id,omitempty"`
	Operation  string  `json:"operation"`
	Table      string  `json:"table"`
	Batch      int     `json:"batch,omitempty"`
	Rows       int     `json:"rows"`
	DurationMS int64   `json:"duration_ms"`
	Error      *string `json:"error"`
}

// FileAuditor appends audit entries as NDJSON (one JSON object per line).
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	now  func() time.Time
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &FileAuditor{
		file: f,
		enc:  enc,
		now:  time.Now,
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:  a.now().UTC().Format(time.RFC3339Nano),
		RunID:      entry.RunID,
		Operation:  entry.Operation,
		Table:      entry.Table,
		Batch:      entry.Batch,
		Rows:       entry.Rows,
		DurationMS: entry.DurationMS,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a load never fails on audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.AuditEntry) {}
func (NoopAuditor) Close() error                            { return nil }
