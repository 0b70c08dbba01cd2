package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StockRepository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*StockRepository)(nil)

func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// Seed inserts every product with initial units. Products already present keep their level.
func (r *StockRepository) Seed(ctx context.Context, products []string, initial int) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO stock (product, quantity) VALUES ($1, $2)
			ON CONFLICT (product) DO NOTHING
		`, p, initial)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	return nil
}

func (r *StockRepository) Get(ctx context.Context, product string) (*domain.Level, error) {
	var l domain.Level
	err := r.pool.QueryRow(ctx, `
		SELECT product, quantity, updated_at FROM stock WHERE product = $1
	`, product).Scan(&l.Product, &l.Quantity, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func (r *StockRepository) Increase(ctx context.Context, product string, quantity int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stock SET quantity = quantity + $2, updated_at = now() WHERE product = $1
	`, product, quantity)
	if err != nil {
		return fmt.Errorf("increase stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Decrease runs the decrement and the ledger insert in one transaction; a
// ledger conflict rolls the decrement back.
func (r *StockRepository) Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE stock SET quantity = quantity - $2, updated_at = now() WHERE product = $1
	`, product, quantity)
	if err != nil {
		return false, fmt.Errorf("decrease stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, domain.ErrNotFound
	}

	if idempotencyKey != "" {
		tag, err = tx.Exec(ctx, `
			INSERT INTO stock_adjustments (idempotency_key, product, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (idempotency_key, product) DO NOTHING
		`, idempotencyKey, product, quantity)
		if err != nil {
			return false, fmt.Errorf("record adjustment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
