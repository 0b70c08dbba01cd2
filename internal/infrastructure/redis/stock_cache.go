package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"github.com/redis/go-redis/v9"
)

const (
	componentStockCache = "stock_cache"
	keyPrefix           = "stock:"
	DefaultTTL          = 30 * time.Second
)

type cachedLevel struct {
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CachedStockRepository puts a cache-aside layer in front of another stock
// repository. Cache failures are logged and fall through to the store.
type CachedStockRepository struct {
	store domain.Repository
	rdb   redis.Cmdable
	ttl   time.Duration
	log   observability.Logger
}

var _ domain.Repository = (*CachedStockRepository)(nil)

func NewCachedStockRepository(store domain.Repository, rdb redis.Cmdable, ttl time.Duration, logger observability.Logger) *CachedStockRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachedStockRepository{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   logger.With(observability.F("component", componentStockCache)),
	}
}

func Key(product string) string { return keyPrefix + product }

func (r *CachedStockRepository) Get(ctx context.Context, product string) (*domain.Level, error) {
	logger := logctx.FromOr(ctx, r.log)

	level, err := r.read(ctx, product)
	switch {
	case err == nil:
		logger.Debug("stock_cache_hit", observability.F("product", product))
		return level, nil
	case errors.Is(err, redis.Nil):
		logger.Debug("stock_cache_miss", observability.F("product", product))
	default:
		logger.Warn("stock_cache_read_failed",
			observability.F("product", product),
			observability.Err(err),
		)
	}

	level, err = r.store.Get(ctx, product)
	if err != nil {
		return nil, err
	}

	if err := r.write(ctx, level); err != nil {
		logger.Warn("stock_cache_write_failed",
			observability.F("product", product),
			observability.Err(err),
		)
	}
	return level, nil
}

func (r *CachedStockRepository) Increase(ctx context.Context, product string, quantity int) error {
	if err := r.store.Increase(ctx, product, quantity); err != nil {
		return err
	}
	r.invalidate(ctx, product)
	return nil
}

func (r *CachedStockRepository) Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (bool, error) {
	applied, err := r.store.Decrease(ctx, product, quantity, idempotencyKey)
	if err != nil {
		return false, err
	}
	if applied {
		r.invalidate(ctx, product)
	}
	return applied, nil
}

func (r *CachedStockRepository) read(ctx context.Context, product string) (*domain.Level, error) {
	raw, err := r.rdb.Get(ctx, Key(product)).Result()
	if err != nil {
		return nil, err
	}
	var c cachedLevel
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cached level: %w", err)
	}
	return &domain.Level{Product: c.Product, Quantity: c.Quantity, UpdatedAt: c.UpdatedAt}, nil
}

func (r *CachedStockRepository) write(ctx context.Context, l *domain.Level) error {
	b, err := json.Marshal(cachedLevel{Product: l.Product, Quantity: l.Quantity, UpdatedAt: l.UpdatedAt})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, Key(l.Product), string(b), r.ttl).Err()
}

func (r *CachedStockRepository) invalidate(ctx context.Context, product string) {
	if err := r.rdb.Del(ctx, Key(product)).Err(); err != nil {
		logctx.FromOr(ctx, r.log).Warn("stock_cache_invalidate_failed",
			observability.F("product", product),
			observability.Err(err),
		)
	}
}
