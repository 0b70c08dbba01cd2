package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
)

type OrderRepository struct {
	mu          sync.RWMutex
	nextID      int64
	orders      map[int64]*domain.Order
	idempotency map[string]int64
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		nextID:      1,
		orders:      make(map[int64]*domain.Order),
		idempotency: make(map[string]int64),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil {
		return errors.New("order repository: order is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if key := order.IdempotencyKey; key != "" {
		if existingID, exists := r.idempotency[key]; exists {
			if _, ok := r.orders[existingID]; ok {
				return domain.ErrConflict
			}
		}
	}

	order.ID = r.nextID
	r.nextID++

	r.orders[order.ID] = order.Clone()
	if key := order.IdempotencyKey; key != "" {
		r.idempotency[key] = order.ID
	}
	return nil
}

func (r *OrderRepository) ListUnprocessed(ctx context.Context) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if o.Processed {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.orders, id)
	if key := order.IdempotencyKey; key != "" {
		delete(r.idempotency, key)
	}
	return nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.idempotency[key]
	if !ok {
		return nil, domain.ErrNotFound
	}

	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}
