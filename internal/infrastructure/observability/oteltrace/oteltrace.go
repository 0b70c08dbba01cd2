package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New wraps a tracer taken from the given provider. The provider is passed in
// explicitly so callers never depend on the process-wide default.
func New(tp trace.TracerProvider, name string) observability.Tracer {
	if name == "" {
		name = "warehouse"
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
