package order

import "context"

type Repository interface {
	// Insert assigns o.ID. A duplicate idempotency key yields ErrConflict.
	Insert(ctx context.Context, o *Order) error
	// ListUnprocessed returns pending orders, oldest first.
	ListUnprocessed(ctx context.Context) ([]*Order, error)
	Delete(ctx context.Context, id int64) error
	FindByIdempotency(ctx context.Context, key string) (*Order, error)
}
