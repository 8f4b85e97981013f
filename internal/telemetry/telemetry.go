// Package telemetry wires up OpenTelemetry tracing and metrics for a
// running proxy process. Providers offers span helpers for the resolve,
// connect and recall operations; the engine opens a connect span when a
// server connection is established, and nothing calls the resolve or
// recall helpers. In dev mode both spans and metric points are
// exported to stdout so a developer can see them without standing up a
// collector.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/mooproxy/mooproxy"

// Providers holds the tracer/meter handles components pull spans and
// instruments from, plus the shutdown hook that flushes and tears down
// the underlying exporters.
type Providers struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Shutdown func(context.Context) error
}

// Setup builds tracer and meter providers. When devMode is false, both
// use no-op implementations (otel.GetTracerProvider's default,
// effectively free) so a production run pays nothing for
// instrumentation it has no collector to send to. When devMode is
// true, both export to w (typically os.Stdout) via the stdout
// exporters named in the ambient stack.
func Setup(devMode bool, w io.Writer) (*Providers, error) {
	if !devMode {
		tp := trace.NewNoopTracerProvider()
		return &Providers{
			Tracer:   tp.Tracer(instrumentationName),
			Meter:    otel.GetMeterProvider().Meter(instrumentationName),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
	)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	return &Providers{
		Tracer: tracerProvider.Tracer(instrumentationName),
		Meter:  meterProvider.Meter(instrumentationName),
		Shutdown: func(ctx context.Context) error {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				return err
			}
			return meterProvider.Shutdown(ctx)
		},
	}, nil
}

// StartResolve opens a span around one name-resolution attempt.
func (p *Providers) StartResolve(ctx context.Context, host string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, "mooproxy/resolve",
		trace.WithAttributes(attrString("host", host)))
}

// StartConnect opens a span around one dial attempt.
func (p *Providers) StartConnect(ctx context.Context, address string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, "mooproxy/connect",
		trace.WithAttributes(attrString("address", address)))
}

// StartRecall opens a span around one history-recall scan.
func (p *Providers) StartRecall(ctx context.Context, query string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, "mooproxy/recall",
		trace.WithAttributes(attrString("query", query)))
}

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
