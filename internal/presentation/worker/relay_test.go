package workerpresentation

import (
	"context"
	"errors"
	"testing"

	domorder "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	domwarehouse "github.com/Zhima-Mochi/warehouse-observability/internal/domain/warehouse"
	infraobs "github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (f *fakeSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if f.handlers == nil {
		f.handlers = map[string]domoutbox.Handler{}
	}
	f.handlers[name] = h
}

type fakeSink struct {
	events []domoutbox.Event
}

func (f *fakeSink) Publish(_ context.Context, e domoutbox.Event) error {
	f.events = append(f.events, e)
	return nil
}

func newTel(t *testing.T) (observability.Observability, *observer.ObservedLogs, *tracetest.SpanRecorder) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tel := infraobs.New(oteltrace.New(tp, "test"), zaplogger.New(zap.New(core)), nil, nil)
	return tel, logs, recorder
}

func TestRelay_SubscribesToAllEventsByDefault(t *testing.T) {
	sub := &fakeSubscriber{}
	NewRelay(sub, nil, "", nil).Start()
	assert.Len(t, sub.handlers, 3)
	for _, name := range Events {
		assert.Contains(t, sub.handlers, name)
	}
}

func TestRelay_LogsAndForwards(t *testing.T) {
	tel, logs, recorder := newTel(t)
	sub := &fakeSubscriber{}
	sink := &fakeSink{}
	NewRelay(sub, sink, "rabbitmq", tel).Start()

	ctx := logctx.WithCorrelationID(context.Background(), "cycle-1")
	evt := domwarehouse.CycleCompletedEvent{CycleID: "cycle-1", OrderID: 3, Outcome: "succeeded", Status: "OK"}
	require.NoError(t, sub.handlers[evt.EventName()](ctx, evt))

	require.Len(t, sink.events, 1)
	assert.Equal(t, evt, sink.events[0])

	received := logs.FilterMessage("event_received").All()
	require.Len(t, received, 1)
	fields := received[0].ContextMap()
	assert.Equal(t, "cycle-1", fields["cycle_id"])
	assert.Equal(t, "cycle-1", fields["correlation_id"])
	assert.Equal(t, "rabbitmq", fields["sink"])
	assert.Equal(t, "warehouse.cycle_completed", fields["event"])
	assert.NotEmpty(t, fields["event_id"])
	assert.NotEmpty(t, fields["trace_id"])

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "EVENT warehouse.cycle_completed", spans[0].Name())
}

func TestRelay_SinkFailure(t *testing.T) {
	tel, logs, recorder := newTel(t)
	sub := &fakeSubscriber{}
	boom := errors.New("broker down")
	sink := domoutbox.PublisherFunc(func(context.Context, domoutbox.Event) error { return boom })
	NewRelay(sub, sink, "rabbitmq", tel).Start()

	evt := domorder.NewOrderDeletedEvent(9)
	err := sub.handlers[evt.EventName()](context.Background(), evt)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("event_forward_failed").Len())
	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "EVENT_FORWARD_FAILED", recorder.Ended()[0].Status().Description)
}

func TestWithEventContext_KeepsCallerEventID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithEventContext(context.Background(), zaplogger.New(zap.New(core)), map[string]string{
		"event_id": "evt-1",
		"event":    "order.created",
		"empty":    "",
	})
	logctx.From(ctx).Info("x")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, "order.created", fields["event"])
	assert.NotContains(t, fields, "empty")
	assert.NotContains(t, fields, "trace_id")
}
