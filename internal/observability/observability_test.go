package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTraceFields(t *testing.T) {
	assert.Nil(t, TraceFields(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := TraceFields(ctx)
	assert.Equal(t, []Field{
		F("trace_id", span.SpanContext().TraceID().String()),
		F("span_id", span.SpanContext().SpanID().String()),
	}, fields)
}

func TestErr(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: ""}, Err(nil))
}

func TestNop(t *testing.T) {
	tel := Nop()
	ctx, span := tel.Tracer().Start(context.Background(), "op")
	assert.Equal(t, context.Background(), ctx)
	assert.False(t, span.SpanContext().IsValid())

	assert.NotPanics(t, func() {
		tel.Logger().With(F("k", "v")).Info("x")
		tel.Metrics().Counter(MUsecaseRequests).Bind(L("a", "b")).Add(1)
		tel.Metrics().Histogram(MUsecaseDuration).Observe(1)
	})
}
