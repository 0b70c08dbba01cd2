package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const orderColumns = `id, computers, chairs, desks, cupboards, is_processed, COALESCE(idempotency_key, ''), created_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*OrderRepository)(nil)

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("order repository: order is required")
	}
	l := o.Lines.Normalize()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO orders (computers, chairs, desks, cupboards, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id
	`, l["computers"], l["chairs"], l["desks"], l["cupboards"], o.IdempotencyKey, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListUnprocessed(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE NOT is_processed
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE idempotency_key = $1
	`, key)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                  domain.Order
		computers, chairs, desks, cupboard int
	)
	if err := row.Scan(&o.ID, &computers, &chairs, &desks, &cupboard, &o.Processed, &o.IdempotencyKey, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Lines = domain.Lines{
		"computers": computers,
		"chairs":    chairs,
		"desks":     desks,
		"cupboards": cupboard,
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
