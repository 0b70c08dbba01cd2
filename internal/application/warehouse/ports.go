package warehouse

import (
	"context"

	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
)

// PendingOrder is an unprocessed order as reported by the order store.
// ID is zero when the store returned a record without an id. Key is the
// idempotency key the order was created with, empty when the store does not
// report one.
type PendingOrder struct {
	ID    int64
	Key   string
	Lines order.Lines
}

type OrderStore interface {
	// Create submits demand; idempotencyKey lets the store replay a retried submission.
	Create(ctx context.Context, lines order.Lines, idempotencyKey string) (int64, error)
	// ListUnprocessed returns pending orders, oldest first.
	ListUnprocessed(ctx context.Context) ([]PendingOrder, error)
	Delete(ctx context.Context, id int64) error
}

type StockStore interface {
	Check(ctx context.Context, product string) (int, error)
	Increase(ctx context.Context, product string, quantity int) error
	// Decrease must be deduplicated by the store on (idempotencyKey, product).
	// applied is false when the store replayed an earlier decrease.
	Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (applied bool, err error)
}

type DemandSource interface {
	Next() order.Lines
}
