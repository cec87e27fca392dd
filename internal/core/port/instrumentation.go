package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	AddLoadedRows(ctx context.Context, table string, n int64)
	IncrementBatches(ctx context.Context, table string)
	IncrementBatchFailures(ctx context.Context, table string)
	RecordBatchDuration(ctx context.Context, table string, ms float64)
	RecordQueryDuration(ctx context.Context, table string, ms float64)
	RecordToolDuration(ctx context.Context, tool string, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) AddLoadedRows(context.Context, string, int64)         {}
func (NoopInstrumentation) IncrementBatches(context.Context, string)             {}
func (NoopInstrumentation) IncrementBatchFailures(context.Context, string)       {}
func (NoopInstrumentation) RecordBatchDuration(context.Context, string, float64) {}
func (NoopInstrumentation) RecordQueryDuration(context.Context, string, float64) {}
func (NoopInstrumentation) RecordToolDuration(context.Context, string, float64)  {}
