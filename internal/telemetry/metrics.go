package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/tablesmith"

// Instruments holds pre-created OTel metric instruments. It implements
// port.Instrumentation.
type Instruments struct {
	LoadedRows    metric.Int64Counter
	Batches       metric.Int64Counter
	BatchFailures metric.Int64Counter
	BatchDuration metric.Float64Histogram
	QueryDuration metric.Float64Histogram
	ToolDuration  metric.Float64Histogram
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return NewInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

// NewInstrumentsFromMeter builds the instruments on meter.
func NewInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	loadedRows, _ := meter.Int64Counter("tablesmith.load.rows",
		metric.WithDescription("Rows committed by batch loads"),
		metric.WithUnit("{row}"),
	)
	batches, _ := meter.Int64Counter("tablesmith.load.batches",
		metric.WithDescription("Load batches issued"),
	)
	batchFailures, _ := meter.Int64Counter("tablesmith.load.batch_failures",
		metric.WithDescription("Load batches rolled back"),
	)
	batchDuration, _ := meter.Float64Histogram("tablesmith.load.batch.duration",
		metric.WithDescription("Batch transaction duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryDuration, _ := meter.Float64Histogram("tablesmith.query.duration",
		metric.WithDescription("Table query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("tablesmith.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		LoadedRows:    loadedRows,
		Batches:       batches,
		BatchFailures: batchFailures,
		BatchDuration: batchDuration,
		QueryDuration: queryDuration,
		ToolDuration:  toolDuration,
	}
}

func tableAttr(table string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("db.collection.name", table))
}

func (i *Instruments) AddLoadedRows(ctx context.Context, table string, n int64) {
	i.LoadedRows.Add(ctx, n, tableAttr(table))
}

func (i *Instruments) IncrementBatches(ctx context.Context, table string) {
	i.Batches.Add(ctx, 1, tableAttr(table))
}

func (i *Instruments) IncrementBatchFailures(ctx context.Context, table string) {
	i.BatchFailures.Add(ctx, 1, tableAttr(table))
}

func (i *Instruments) RecordBatchDuration(ctx context.Context, table string, ms float64) {
	i.BatchDuration.Record(ctx, ms, tableAttr(table))
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, table string, ms float64) {
	i.QueryDuration.Record(ctx, ms, tableAttr(table))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, tool string, ms float64) {
	i.ToolDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("mcp.tool.name", tool)))
}
