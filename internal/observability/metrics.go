// Package observability wires the gateway's metrics and tracing. Metrics
// are built on OpenTelemetry's metrics API and exported through the OTel
// Prometheus bridge to a single /metrics endpoint; traces go out through
// the OTLP/HTTP exporter in tracing.go.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	gwerrors "routegate/internal/errors"
)

// Metrics holds the instruments the gateway records against per request:
// how many requests landed on each tier and why, how many upstream calls
// failed, and how long completion took end to end.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	decisions      metric.Int64Counter
	upstreamErrors metric.Int64Counter
	requestLatency metric.Float64Histogram
}

// New builds a Metrics instance backed by a fresh Prometheus registry. Call
// Handler to expose it and Shutdown on process exit.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to construct prometheus exporter")
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("routegate")

	decisions, err := meter.Int64Counter(
		"routegate_routing_decisions_total",
		metric.WithDescription("Completed routing decisions by chosen tier and basis"),
	)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to create routing decisions counter")
	}
	upstreamErrors, err := meter.Int64Counter(
		"routegate_upstream_errors_total",
		metric.WithDescription("Upstream backend call failures by tier"),
	)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to create upstream errors counter")
	}
	requestLatency, err := meter.Float64Histogram(
		"routegate_request_duration_seconds",
		metric.WithDescription("End-to-end completion request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to create request latency histogram")
	}

	return &Metrics{
		registry:       registry,
		provider:       provider,
		decisions:      decisions,
		upstreamErrors: upstreamErrors,
		requestLatency: requestLatency,
	}, nil
}

// RecordDecision records one completed routing decision.
func (m *Metrics) RecordDecision(ctx context.Context, tier, basis string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("basis", basis),
	))
}

// RecordUpstreamError records one failed backend call for the given tier.
func (m *Metrics) RecordUpstreamError(ctx context.Context, tier string) {
	m.upstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordRequestDuration records the end-to-end duration, in seconds, of one
// completion request that resolved to the given tier.
func (m *Metrics) RecordRequestDuration(ctx context.Context, seconds float64, tier string) {
	m.requestLatency.Record(ctx, seconds, metric.WithAttributes(attribute.String("tier", tier)))
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and releases the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
