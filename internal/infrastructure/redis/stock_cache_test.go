package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/memory"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var updatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const desksJSON = `{"product":"desks","quantity":500,"updated_at":"2024-05-01T12:00:00Z"}`

// fixedStore pins UpdatedAt so cache payloads are deterministic.
type fixedStore struct{ *memory.StockRepository }

func (s fixedStore) Get(ctx context.Context, product string) (*domain.Level, error) {
	l, err := s.StockRepository.Get(ctx, product)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt = updatedAt
	return l, nil
}

func newRepo(t *testing.T) (*CachedStockRepository, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	store := fixedStore{memory.NewStockRepository(order.Products, 500)}
	return NewCachedStockRepository(store, db, time.Minute, nil), mock
}

func TestGet_MissPopulatesCache(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectGet("stock:desks").RedisNil()
	mock.ExpectSet("stock:desks", desksJSON, time.Minute).SetVal("OK")

	level, err := repo.Get(ctx, "desks")
	require.NoError(t, err)
	assert.Equal(t, 500, level.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_HitSkipsStore(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectGet("stock:desks").SetVal(`{"product":"desks","quantity":42,"updated_at":"2024-05-01T12:00:00Z"}`)

	level, err := repo.Get(context.Background(), "desks")
	require.NoError(t, err)
	assert.Equal(t, 42, level.Quantity)
	assert.Equal(t, updatedAt, level.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_CacheErrorFallsBackToStore(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectGet("stock:desks").SetErr(errors.New("connection refused"))
	mock.ExpectSet("stock:desks", desksJSON, time.Minute).SetErr(errors.New("connection refused"))

	level, err := repo.Get(context.Background(), "desks")
	require.NoError(t, err)
	assert.Equal(t, 500, level.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_UnknownProductIsNotCached(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectGet("stock:sofas").RedisNil()

	_, err := repo.Get(context.Background(), "sofas")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationsInvalidate(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectDel("stock:desks").SetVal(1)
	require.NoError(t, repo.Increase(ctx, "desks", 100))

	mock.ExpectDel("stock:desks").SetVal(1)
	applied, err := repo.Decrease(ctx, "desks", 10, "order-1")
	require.NoError(t, err)
	assert.True(t, applied)

	// replay changes nothing, so the entry stays
	applied, err = repo.Decrease(ctx, "desks", 10, "order-1")
	require.NoError(t, err)
	assert.False(t, applied)

	// a failed mutation does not touch the cache
	assert.ErrorIs(t, repo.Increase(ctx, "sofas", 1), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
