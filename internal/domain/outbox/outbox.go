package outbox

import "context"

// Event is anything published on the bus, routed by its name.
type Event interface {
	EventName() string
}

// Handler processes one delivered event. Errors are logged by the bus, not retried.
type Handler func(ctx context.Context, e Event) error

// Publisher hands an event to the bus or an external broker. Publishing is
// best-effort for every caller in this module: failures never fail the use case.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
