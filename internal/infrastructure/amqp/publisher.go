package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher forwards domain events to a topic exchange, routed by event name.
type Publisher struct {
	ch       Channel
	exchange string
	appID    string
	prop     propagation.TextMapPropagator
}

var _ domoutbox.Publisher = (*Publisher)(nil)

func NewPublisher(ch Channel, exchange, appID string, prop propagation.TextMapPropagator) *Publisher {
	if prop == nil {
		prop = propagation.TraceContext{}
	}
	return &Publisher{ch: ch, exchange: exchange, appID: appID, prop: prop}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("amqp: marshal %s: %w", e.EventName(), err)
	}

	headers := amqp.Table{}
	p.prop.Inject(ctx, HeadersCarrier(headers))

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         e.EventName(),
		AppId:        p.appID,
		Headers:      headers,
		Body:         body,
	}
	if id := logctx.CorrelationID(ctx); id != "" {
		msg.CorrelationId = id
	}

	if err := p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		e.EventName(), // routing key
		false,         // mandatory
		false,         // immediate
		msg,
	); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", e.EventName(), err)
	}
	return nil
}

// HeadersCarrier adapts AMQP headers to the OpenTelemetry TextMapCarrier.
type HeadersCarrier amqp.Table

func (c HeadersCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c HeadersCarrier) Set(key, value string) {
	c[key] = value
}

func (c HeadersCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
