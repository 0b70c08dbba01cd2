package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultCollectorPort = "4317"
	serviceVersion       = "v0.0.1"
	exporterInitTimeout  = 5 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// Provider bundles the SDK tracer provider with the propagator every service
// uses on its HTTP boundaries.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// CollectorEndpoint normalises OTEL_HOST style values: a bare host gets the
// default OTLP gRPC port appended.
func CollectorEndpoint(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return "localhost:" + defaultCollectorPort
	}
	if !strings.Contains(host, ":") {
		return host + ":" + defaultCollectorPort
	}
	return host
}

// New builds a batching OTLP/gRPC tracer provider for serviceName.
// The exporter connects lazily, so an unreachable collector does not block startup.
func New(ctx context.Context, serviceName, collectorHost, instanceID string) (*Provider, error) {
	initCtx, cancel := context.WithTimeout(ctx, exporterInitTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(initCtx,
		otlptracegrpc.WithEndpoint(CollectorEndpoint(collectorHost)),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		attribute.String("service.instance.id", instanceID),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	return &Provider{
		TracerProvider: tp,
		Propagator:     propagation.TraceContext{},
	}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown() error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.TracerProvider.Shutdown(ctx)
}
