package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

var _ repository.ItemRepository = (*ItemStore)(nil)

// ItemStore is a PostgreSQL ItemRepository.
type ItemStore struct {
	pool *pgxpool.Pool
}

const itemColumns = `id, name, description, is_active, quantity, unit_price_cents, created_at, updated_at`

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id string) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// List returns a page of items ordered by creation time.
func (s *ItemStore) List(ctx context.Context, page repository.Page) ([]*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at, id OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Item, 0, page.Limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Count returns the number of items.
func (s *ItemStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Create inserts a new item.
func (s *ItemStore) Create(ctx context.Context, id string, in model.ItemCreate) (*model.Item, error) {
	query := `
		INSERT INTO items (id, name, description, is_active, quantity, unit_price_cents)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, id, in.Name, in.Description, in.Quantity, in.UnitPriceCents))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Update applies a partial update. Only set fields are written.
func (s *ItemStore) Update(ctx context.Context, id string, in model.ItemUpdate) (*model.Item, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.IsActive != nil {
		add("is_active", *in.IsActive)
	}
	if in.Quantity != nil {
		add("quantity", *in.Quantity)
	}
	if in.UnitPriceCents != nil {
		add("unit_price_cents", *in.UnitPriceCents)
	}

	query := `UPDATE items SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrNotFound
		case isUniqueViolation(err):
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrInUse
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ReserveStock decrements quantity only if enough stock remains.
func (s *ItemStore) ReserveStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	query := `
		UPDATE items SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, id, qty))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	// No row updated: either the item is gone or stock is short.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check item: %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrInsufficientStock
}

// ReleaseStock increments quantity.
func (s *ItemStore) ReleaseStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	query := `
		UPDATE items SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, id, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to release stock: %w", err)
	}
	return item, nil
}

func scanItem(row pgx.Row) (*model.Item, error) {
	var item model.Item
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.IsActive,
		&item.Quantity,
		&item.UnitPriceCents,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}
