// Package observability wires up the process-wide tracer used by the vector
// store, generator, and HTTP layers. Logging itself uses log/slog directly
// at the call site, matching how the teacher repo logs (see
// vectorstore/postgres).
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// Init installs a tracer provider for the given service name and returns a
// shutdown func. With no exporter configured this records spans in-process
// only (sampled, never shipped) - enough for otelsql/otelhttp/otelgin
// instrumentation to have somewhere to write without requiring an external
// collector in tests or local runs.
func Init(serviceName string) (shutdown func(context.Context) error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
