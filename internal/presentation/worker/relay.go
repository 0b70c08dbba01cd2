package workerpresentation

import (
	"context"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	domwarehouse "github.com/Zhima-Mochi/warehouse-observability/internal/domain/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const componentRelay = "event_relay"

// Events lists every event the services emit on the in-process bus.
var Events = []string{
	domwarehouse.CycleCompletedEvent{}.EventName(),
	domorder.OrderCreatedEvent{}.EventName(),
	domorder.OrderDeletedEvent{}.EventName(),
}

// Relay consumes bus events, logs them and forwards them to an optional
// external sink such as the AMQP publisher.
type Relay struct {
	subscriber domoutbox.Subscriber
	sink       domoutbox.Publisher
	sinkName   string
	log        observability.Logger
	tracer     observability.Tracer

	reqCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	durHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewRelay builds a relay. sink may be nil, in which case events are only logged.
func NewRelay(subscriber domoutbox.Subscriber, sink domoutbox.Publisher, sinkName string, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Relay{
		subscriber:   subscriber,
		sink:         sink,
		sinkName:     sinkName,
		log:          tel.Logger().With(observability.F("component", componentRelay)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		durHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Start subscribes to the given events, or to Events when none are named.
func (r *Relay) Start(events ...string) {
	if r.subscriber == nil {
		return
	}
	if len(events) == 0 {
		events = Events
	}
	for _, name := range events {
		r.subscriber.Subscribe(name, r.handle)
	}
}

func (r *Relay) handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	ctx, span := r.tracer.Start(ctx, "EVENT "+name,
		attribute.String("messaging.operation", "process"),
		attribute.String("event.name", name),
	)
	defer span.End()

	ctx = WithEventContext(ctx, r.log, map[string]string{
		"event": name,
		"sink":  r.sinkName,
	})
	logger := logctx.FromOr(ctx, r.log)
	logger.Info("event_received", eventFields(e)...)

	if r.sink == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	start := time.Now()
	err := r.sink.Publish(ctx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.reqCounter.Add(1,
		observability.L("peer", r.sinkName),
		observability.L("endpoint", name),
		observability.L("outcome", outcome),
	)
	r.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", r.sinkName),
		observability.L("endpoint", name),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "EVENT_FORWARD_FAILED")
		logger.Warn("event_forward_failed", observability.Err(err))
		return fmt.Errorf("relay %s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "")
	logger.Debug("event_forwarded")
	return nil
}

func eventFields(e domoutbox.Event) []observability.Field {
	switch evt := e.(type) {
	case domwarehouse.CycleCompletedEvent:
		return []observability.Field{
			observability.F("cycle_id", evt.CycleID),
			observability.F("order_id", evt.OrderID),
			observability.F("outcome", evt.Outcome),
			observability.F("status", evt.Status),
		}
	case domorder.OrderCreatedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("total_quantity", evt.Lines.Total()),
		}
	case domorder.OrderDeletedEvent:
		return []observability.Field{observability.F("order_id", evt.OrderID)}
	default:
		return nil
	}
}
