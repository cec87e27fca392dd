package telemetry

import (
	"context"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ port.Instrumentation = (*Instruments)(nil)

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, span)
	span.End()
}

func TestNoopInstruments(t *testing.T) {
	inst := NoopInstruments()
	require.NotNil(t, inst)

	// Should not panic.
	ctx := context.Background()
	inst.AddLoadedRows(ctx, "orders", 10)
	inst.IncrementBatches(ctx, "orders")
	inst.IncrementBatchFailures(ctx, "orders")
	inst.RecordBatchDuration(ctx, "orders", 12.5)
	inst.RecordQueryDuration(ctx, "orders", 3)
	inst.RecordToolDuration(ctx, "query_table", 4)
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	var p *Provider
	err := p.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestProvider_RecordsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	p, err := newProvider(ctx, Options{ServiceName: "tablesmith", Version: "test"}, sdktrace.WithSyncer(exporter), reader)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	_, span := p.Tracer().Start(ctx, "BatchLoader.batch")
	span.SetAttributes(attribute.Int("load.batch", 2))
	span.End()
	p.Instruments().AddLoadedRows(ctx, "orders", 7)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "BatchLoader.batch", spans[0].Name)
	svc, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "tablesmith", svc.AsString())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, meterName, rm.ScopeMetrics[0].Scope.Name)
}

func TestOptions_Sampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Options{SampleRatio: tt.ratio}.sampler().Description()
		assert.Contains(t, desc, tt.want, "ratio %v", tt.ratio)
		assert.Contains(t, desc, "ParentBased")
	}
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst := NewInstrumentsFromMeter(mp.Meter("test"))
	ctx := context.Background()

	inst.AddLoadedRows(ctx, "orders", 1000)
	inst.AddLoadedRows(ctx, "orders", 500)
	inst.IncrementBatches(ctx, "orders")
	inst.IncrementBatches(ctx, "orders")
	inst.IncrementBatchFailures(ctx, "orders")
	inst.RecordBatchDuration(ctx, "orders", 20)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "tablesmith.load.rows")
	require.Contains(t, byName, "tablesmith.load.batches")
	require.Contains(t, byName, "tablesmith.load.batch_failures")
	require.Contains(t, byName, "tablesmith.load.batch.duration")

	rows, ok := byName["tablesmith.load.rows"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(1500), rows.DataPoints[0].Value)
	table, ok := rows.DataPoints[0].Attributes.Value("db.collection.name")
	require.True(t, ok)
	assert.Equal(t, "orders", table.AsString())

	batches := byName["tablesmith.load.batches"].Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(2), batches.DataPoints[0].Value)
}
