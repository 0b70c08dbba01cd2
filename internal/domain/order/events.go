package order

import "time"

// OrderCreatedEvent is emitted once an order is stored.
type OrderCreatedEvent struct {
	OrderID    int64     `json:"order_id"`
	Lines      Lines     `json:"lines"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		Lines:      o.Lines.Normalize(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderDeletedEvent is emitted when a fulfilled order is retired.
type OrderDeletedEvent struct {
	OrderID    int64     `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderDeletedEvent) EventName() string { return "order.deleted" }

func NewOrderDeletedEvent(id int64) OrderDeletedEvent {
	return OrderDeletedEvent{
		OrderID:    id,
		OccurredAt: time.Now().UTC(),
	}
}
