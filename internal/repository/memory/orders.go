package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

var _ repository.OrderRepository = (*OrderStore)(nil)

// OrderStore is an in-memory OrderRepository.
type OrderStore struct {
	mu     *sync.RWMutex
	orders map[string]*model.Order
	ids    []string
	items  *ItemStore // set by NewStores
}

// NewOrderStore creates an empty OrderStore that accepts any item ID.
func NewOrderStore() *OrderStore {
	return &OrderStore{mu: new(sync.RWMutex), orders: make(map[string]*model.Order)}
}

// Get retrieves an order by ID.
func (s *OrderStore) Get(ctx context.Context, id string) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return order.Clone(), nil
}

// List returns orders in insertion order.
func (s *OrderStore) List(ctx context.Context, page repository.Page) ([]*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := window(s.ids, page)
	out := make([]*model.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.orders[id].Clone())
	}
	return out, nil
}

// Count returns the number of stored orders.
func (s *OrderStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
}

// CountByItem returns the number of orders placed against itemID.
func (s *OrderStore) CountByItem(ctx context.Context, itemID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByItem(itemID), nil
}

// countByItem must be called with s.mu held.
func (s *OrderStore) countByItem(itemID string) int {
	n := 0
	for _, o := range s.orders {
		if o.ItemID == itemID {
			n++
		}
	}
	return n
}

// Create stores a new order.
func (s *OrderStore) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return nil, repository.ErrDuplicate
	}
	if s.items != nil {
		if _, ok := s.items.items[order.ItemID]; !ok {
			return nil, repository.ErrNotFound
		}
	}

	stored := order.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now()
	}
	s.orders[stored.ID] = stored
	s.ids = append(s.ids, stored.ID)
	return stored.Clone(), nil
}

// Delete removes an order.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.orders, id)
	s.ids = slices.DeleteFunc(s.ids, func(v string) bool { return v == id })
	return nil
}

// Seed stores orders as-is.
func (s *OrderStore) Seed(orders ...*model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		if _, exists := s.orders[o.ID]; !exists {
			s.ids = append(s.ids, o.ID)
		}
		s.orders[o.ID] = o.Clone()
	}
}

// Clear removes all orders.
func (s *OrderStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*model.Order)
	s.ids = nil
}
