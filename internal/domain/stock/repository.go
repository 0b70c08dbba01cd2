package stock

import "context"

type Repository interface {
	Get(ctx context.Context, product string) (*Level, error)
	Increase(ctx context.Context, product string, quantity int) error
	// Decrease subtracts quantity. A non-empty idempotencyKey is recorded with the
	// mutation; a repeated (key, product) pair changes nothing and reports applied=false.
	Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (applied bool, err error)
}
