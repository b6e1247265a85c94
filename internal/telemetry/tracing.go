// Package telemetry configures OpenTelemetry distributed tracing, the Go
// analog of the teacher's Python service's FastAPI OTLP setup: traces are
// exported to an OTLP gRPC collector (Jaeger, Tempo, any OTLP-compatible
// backend), localhost:4317 by default.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "archon-server"

// Setup configures the global TracerProvider against the OTLP endpoint named
// by OTEL_EXPORTER_OTLP_ENDPOINT (default localhost:4317), mirroring the
// TESTING env var escape hatch of the original Python setup_tracing: any
// non-empty ARCHON_TRACING_DISABLED disables tracing. An empty endpoint
// falls back to the default; it does not disable tracing.
//
// The returned shutdown func flushes and closes the exporter; call it during
// graceful shutdown.
func Setup(ctx context.Context) (shutdown func(context.Context) error, err error) {
	if os.Getenv("ARCHON_TRACING_DISABLED") != "" {
		return func(context.Context) error { return nil }, nil
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns the package-scoped tracer for archon spans.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
