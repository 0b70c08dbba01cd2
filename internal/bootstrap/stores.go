package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/config"
	domorder "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domstock "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/postgres"
	rediscache "github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

func openPostgres(ctx context.Context, s config.Store) (*postgres.DB, error) {
	db, err := postgres.New(ctx, s.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenOrderStore returns the configured order repository and its closer.
func OpenOrderStore(ctx context.Context, s config.Store) (domorder.Repository, func(), error) {
	if s.Backend != config.BackendPostgres {
		return memory.NewOrderRepository(), func() {}, nil
	}
	db, err := openPostgres(ctx, s)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: order store: %w", err)
	}
	return postgres.NewOrderRepository(db.Pool), db.Close, nil
}

// OpenStockStore returns the configured stock repository, seeded with the
// catalog and wrapped in the redis cache when REDIS_ADDR is set.
func OpenStockStore(ctx context.Context, s config.Store, logger observability.Logger) (domstock.Repository, func(), error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	var (
		repo    domstock.Repository
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if s.Backend == config.BackendPostgres {
		db, err := openPostgres(ctx, s)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: stock store: %w", err)
		}
		closers = append(closers, db.Close)
		pg := postgres.NewStockRepository(db.Pool)
		if err := pg.Seed(ctx, domorder.Products, s.InitialStock); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("bootstrap: stock store: %w", err)
		}
		repo = pg
	} else {
		repo = memory.NewStockRepository(domorder.Products, s.InitialStock)
	}

	if s.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		closers = append(closers, func() { _ = rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// the cache degrades to pass-through on errors, so keep going
			logger.Warn("redis_ping_failed",
				observability.F("addr", s.RedisAddr),
				observability.Err(err),
			)
		}
		repo = rediscache.NewCachedStockRepository(repo, rdb, s.RedisTTL, logger)
	}

	return repo, closeAll, nil
}
