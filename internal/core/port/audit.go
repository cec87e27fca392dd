package port

import "context"

// AuditEntry represents a single auditable engine event: one load batch or one read.
type AuditEntry struct {
	RunID      string
	Operation  string
	Table      string
	// Batch is the 1-based batch number; zero for events outside a load.
	Batch      int
	Rows       int
	DurationMS int64
	Err        error
}

// Auditor records audit events.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
