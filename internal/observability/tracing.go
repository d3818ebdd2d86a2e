package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	gwerrors "routegate/internal/errors"
)

// TracerProvider wraps the OTLP-over-HTTP trace pipeline. Disabled by
// default; when TracingConfig.Enabled is set it installs itself as the
// global tracer provider and exports whatever spans are started through it.
// The routing and completion code does not start any spans of its own.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider builds an OTLP/HTTP exporter pointed at endpoint and
// registers it globally via otel.SetTracerProvider.
func NewTracerProvider(ctx context.Context, serviceName, endpoint string) (*TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to construct OTLP trace exporter")
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to build trace resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &TracerProvider{provider: tp}, nil
}

// Tracer returns the gateway's named tracer.
func (p *TracerProvider) Tracer() trace.Tracer {
	return p.provider.Tracer("routegate")
}

// Shutdown flushes pending spans and releases the exporter.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
