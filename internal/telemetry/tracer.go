// Package telemetry wires the global OpenTelemetry tracer provider. Spans
// are emitted around every completion call and self-test iteration, so a
// full test run can be read as a trace.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Version is reported as service.version on every span. It matches the
// version in the User-Agent the outbound API client sends.
const Version = "1.0"

// InitTracer installs the global tracer provider and returns its shutdown
// function. Spans go to stdout; this is a demo service with no collector.
func InitTracer(serviceName string, logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	// Schema-less on purpose: Merge rejects two differing schema URLs, and
	// resource.Default carries its own.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		slog.String("service", serviceName),
		slog.String("version", Version),
	)

	return tp.Shutdown, nil
}
