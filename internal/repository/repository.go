// Package repository defines the data access contracts used by services.
// Implementations live in subpackages (memory, postgres) and are chosen at
// process start.
package repository

import (
	"context"
	"errors"

	"github.com/stacklane/stacklane/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInUse             = errors.New("record is referenced by other records")
)

// Pagination limits.
const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Page selects a window of a list ordered by creation time.
type Page struct {
	Skip  int
	Limit int
}

// NormalizePage clamps skip/limit to safe values.
func NormalizePage(skip, limit int) Page {
	if skip < 0 {
		skip = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if limit < 1 {
		limit = 1
	}
	return Page{Skip: skip, Limit: limit}
}

// ItemRepository is the data access contract for items.
type ItemRepository interface {
	// Get returns ErrNotFound if the item does not exist.
	Get(ctx context.Context, id string) (*model.Item, error)
	List(ctx context.Context, page Page) ([]*model.Item, error)
	Count(ctx context.Context) (int, error)
	// Create returns ErrDuplicate if the name is taken.
	Create(ctx context.Context, id string, in model.ItemCreate) (*model.Item, error)
	// Update returns ErrNotFound or ErrDuplicate.
	Update(ctx context.Context, id string, in model.ItemUpdate) (*model.Item, error)
	// Delete returns ErrNotFound, or ErrInUse when orders still reference
	// the item and the store enforces that itself.
	Delete(ctx context.Context, id string) error
	// ReserveStock atomically takes qty units. It returns ErrInsufficientStock
	// and leaves the item untouched when fewer than qty units remain.
	ReserveStock(ctx context.Context, id string, qty int) (*model.Item, error)
	// ReleaseStock returns qty units to the item.
	ReleaseStock(ctx context.Context, id string, qty int) (*model.Item, error)
}

// OrderRepository is the data access contract for orders.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, page Page) ([]*model.Order, error)
	Count(ctx context.Context) (int, error)
	CountByItem(ctx context.Context, itemID string) (int, error)
	// Create returns ErrDuplicate if the order ID exists, or ErrNotFound
	// when the store enforces the item reference and the item is gone.
	Create(ctx context.Context, order *model.Order) (*model.Order, error)
	Delete(ctx context.Context, id string) error
}
