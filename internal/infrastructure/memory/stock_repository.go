package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
)

type StockRepository struct {
	mu      sync.RWMutex
	levels  map[string]*domain.Level
	applied map[adjustmentKey]struct{}
}

type adjustmentKey struct {
	key     string
	product string
}

// NewStockRepository seeds every product with initial units.
func NewStockRepository(products []string, initial int) *StockRepository {
	now := time.Now().UTC()
	levels := make(map[string]*domain.Level, len(products))
	for _, p := range products {
		levels[p] = &domain.Level{Product: p, Quantity: initial, UpdatedAt: now}
	}
	return &StockRepository{
		levels:  levels,
		applied: make(map[adjustmentKey]struct{}),
	}
}

func (r *StockRepository) Get(ctx context.Context, product string) (*domain.Level, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	level, ok := r.levels[product]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return level.Clone(), nil
}

func (r *StockRepository) Increase(ctx context.Context, product string, quantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	level, ok := r.levels[product]
	if !ok {
		return domain.ErrNotFound
	}
	level.Quantity += quantity
	level.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *StockRepository) Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	level, ok := r.levels[product]
	if !ok {
		return false, domain.ErrNotFound
	}
	if idempotencyKey != "" {
		k := adjustmentKey{key: idempotencyKey, product: product}
		if _, seen := r.applied[k]; seen {
			return false, nil
		}
		r.applied[k] = struct{}{}
	}
	level.Quantity -= quantity
	level.UpdatedAt = time.Now().UTC()
	return true, nil
}
