package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeType = "topic"
	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// Connection owns the broker connection and the channel events are published on.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to url, retrying while the broker starts, and declares a
// durable topic exchange.
func Dial(ctx context.Context, url, exchange string, logger observability.Logger) (*Connection, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("amqp_dial_failed",
			observability.F("attempt", i+1),
			observability.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("amqp: connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %q: %w", exchange, err)
	}

	return &Connection{conn: conn, ch: ch}, nil
}

func (c *Connection) Channel() *amqp.Channel { return c.ch }

func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
