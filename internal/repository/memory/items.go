// Package memory provides in-memory repository implementations for tests
// and local development. Stored entities are never handed out directly;
// callers always receive copies.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

var _ repository.ItemRepository = (*ItemStore)(nil)

// ItemStore is an in-memory ItemRepository.
type ItemStore struct {
	mu     *sync.RWMutex
	items  map[string]*model.Item
	ids    []string // insertion order
	now    func() time.Time
	orders *OrderStore // set by NewStores
}

// NewItemStore creates an empty ItemStore that does not track orders.
func NewItemStore() *ItemStore {
	return &ItemStore{
		mu:    new(sync.RWMutex),
		items: make(map[string]*model.Item),
		now:   now,
	}
}

// NewStores creates an ItemStore and an OrderStore that share one lock and
// enforce the order to item reference the way a foreign key does: Delete
// returns ErrInUse for an item with orders, and an order naming a missing
// item is refused with ErrNotFound.
func NewStores() (*ItemStore, *OrderStore) {
	items := NewItemStore()
	orders := NewOrderStore()
	orders.mu = items.mu
	items.orders, orders.items = orders, items
	return items, orders
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id string) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return item.Clone(), nil
}

// List returns items in insertion order.
func (s *ItemStore) List(ctx context.Context, page repository.Page) ([]*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := window(s.ids, page)
	out := make([]*model.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// Count returns the number of stored items.
func (s *ItemStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, id string, in model.ItemCreate) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return nil, repository.ErrDuplicate
	}
	if s.nameTaken(in.Name, "") {
		return nil, repository.ErrDuplicate
	}

	ts := s.now()
	item := &model.Item{
		ID:             id,
		Name:           in.Name,
		IsActive:       true,
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if in.Description != nil {
		d := *in.Description
		item.Description = &d
	}

	s.items[id] = item
	s.ids = append(s.ids, id)
	return item.Clone(), nil
}

// Update replaces an item with the update applied.
func (s *ItemStore) Update(ctx context.Context, id string, in model.ItemUpdate) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if in.Name != nil && s.nameTaken(*in.Name, id) {
		return nil, repository.ErrDuplicate
	}

	updated := in.Apply(existing, s.now())
	s.items[id] = updated
	return updated.Clone(), nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	if s.orders != nil && s.orders.countByItem(id) > 0 {
		return repository.ErrInUse
	}
	delete(s.items, id)
	s.ids = slices.DeleteFunc(s.ids, func(v string) bool { return v == id })
	return nil
}

// ReserveStock takes qty units from the item.
func (s *ItemStore) ReserveStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !existing.HasStock(qty) {
		return nil, repository.ErrInsufficientStock
	}

	remaining := existing.Quantity - qty
	updated := model.ItemUpdate{Quantity: &remaining}.Apply(existing, s.now())
	s.items[id] = updated
	return updated.Clone(), nil
}

// ReleaseStock returns qty units to the item.
func (s *ItemStore) ReleaseStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	total := existing.Quantity + qty
	updated := model.ItemUpdate{Quantity: &total}.Apply(existing, s.now())
	s.items[id] = updated
	return updated.Clone(), nil
}

// Seed stores items as-is, replacing any with the same ID.
func (s *ItemStore) Seed(items ...*model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if _, exists := s.items[item.ID]; !exists {
			s.ids = append(s.ids, item.ID)
		}
		s.items[item.ID] = item.Clone()
	}
}

// Clear removes all items.
func (s *ItemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*model.Item)
	s.ids = nil
}

// nameTaken must be called with s.mu held.
func (s *ItemStore) nameTaken(name, exceptID string) bool {
	for id, item := range s.items {
		if id != exceptID && strings.EqualFold(item.Name, name) {
			return true
		}
	}
	return false
}

func window(ids []string, page repository.Page) []string {
	if page.Skip >= len(ids) {
		return nil
	}
	end := len(ids)
	if page.Limit > 0 && page.Skip+page.Limit < end {
		end = page.Skip + page.Limit
	}
	return ids[page.Skip:end]
}
