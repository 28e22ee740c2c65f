package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

var _ repository.OrderRepository = (*OrderStore)(nil)

// OrderStore is a PostgreSQL OrderRepository.
type OrderStore struct {
	pool *pgxpool.Pool
}

const orderColumns = `id, item_id, quantity, unit_price_cents, discount_bps, total_cents, created_at`

// Get retrieves an order by ID.
func (s *OrderStore) Get(ctx context.Context, id string) (*model.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// List returns a page of orders ordered by creation time.
func (s *OrderStore) List(ctx context.Context, page repository.Page) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*model.Order, 0, page.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// Count returns the number of orders.
func (s *OrderStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// CountByItem returns the number of orders referencing itemID.
func (s *OrderStore) CountByItem(ctx context.Context, itemID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE item_id = $1`, itemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders for item: %w", err)
	}
	return n, nil
}

// Create inserts an order. A zero CreatedAt is filled by the database.
func (s *OrderStore) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	query := `
		INSERT INTO orders (id, item_id, quantity, unit_price_cents, discount_bps, total_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, now()))
		RETURNING ` + orderColumns

	var createdAt any
	if !order.CreatedAt.IsZero() {
		createdAt = order.CreatedAt
	}

	created, err := scanOrder(s.pool.QueryRow(ctx, query,
		order.ID,
		order.ItemID,
		order.Quantity,
		order.UnitPriceCents,
		order.DiscountBps,
		order.TotalCents,
		createdAt,
	))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, repository.ErrDuplicate
		case isForeignKeyViolation(err):
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

// Delete removes an order.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.ItemID,
		&o.Quantity,
		&o.UnitPriceCents,
		&o.DiscountBps,
		&o.TotalCents,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
