// SPDX-License-Identifier: MIT

// Package tracing wires an OpenTelemetry tracer for playcore's suspension
// points (initialize, focus, scheduler pass), so a slow decoder
// shows up in a trace waterfall. With no collector configured, Setup
// returns a no-op tracer provider and the rest of the module behaves
// exactly as if tracing were absent.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Options controls whether and where spans are exported.
type Options struct {
	// Endpoint is the OTLP/HTTP collector address, e.g. "localhost:4318".
	// Empty disables export; Setup still returns a usable (no-op) tracer.
	Endpoint string
}

// ScopeName is the default tracer scope every playcore span is created
// under when a caller doesn't need a more specific component name.
const ScopeName = "github.com/reelstack/playcore"

// Tracer returns a tracer for the given component name, reading whatever
// provider is currently installed (the real one after Setup, a silent
// no-op beforehand). Pool, Coordinator, and Scheduler call this directly
// rather than threading a trace.Tracer through every constructor.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Setup configures the global tracer provider per opts and returns a
// shutdown func the caller must invoke on exit.
func Setup(ctx context.Context, opts Options) (trace.Tracer, func(context.Context) error, error) {
	if opts.Endpoint == "" {
		return otel.Tracer(ScopeName), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(opts.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", "playcore"))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(ScopeName), tp.Shutdown, nil
}
