package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultMetricInterval = 30 * time.Second

// Options configures the exported telemetry.
type Options struct {
	ServiceName string
	Version     string
	// SampleRatio in (0, 1) samples that fraction of root spans; other values keep all.
	SampleRatio float64
	// MetricInterval is the OTLP metric push period, default 30s.
	MetricInterval time.Duration
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio > 0 && o.SampleRatio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

// Provider owns the trace and metric providers so the CLI can flush them on exit.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Init wires OTLP gRPC exporters and installs them as the global providers.
// Endpoints and headers come from the standard OTEL_EXPORTER_OTLP_* variables.
func Init(ctx context.Context, opts Options) (*Provider, error) {
	spans, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	interval := opts.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	p, err := newProvider(ctx, opts, sdktrace.WithBatcher(spans),
		sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(interval)))
	if err != nil {
		return nil, err
	}
	p.install()
	return p, nil
}

// newProvider builds providers around an arbitrary span processor and metric reader.
func newProvider(ctx context.Context, opts Options, spans sdktrace.TracerProviderOption, reader sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}
	return &Provider{
		tp: sdktrace.NewTracerProvider(spans, sdktrace.WithResource(res), sdktrace.WithSampler(opts.sampler())),
		mp: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)),
	}, nil
}

func (p *Provider) install() {
	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	// W3C trace context for the HTTP surface; the CLI and stdio have no headers.
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// Tracer returns a tracer bound to this provider.
func (p *Provider) Tracer() trace.Tracer { return p.tp.Tracer(meterName) }

// Instruments returns metric instruments bound to this provider.
func (p *Provider) Instruments() *Instruments {
	return NewInstrumentsFromMeter(p.mp.Meter(meterName))
}

// Shutdown flushes pending spans and metrics. A nil Provider is a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NoopTracer is used when telemetry is disabled.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
