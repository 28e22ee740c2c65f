package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklane/stacklane/internal/apperr"
	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

// ItemService handles item business logic.
type ItemService struct {
	items   repository.ItemRepository
	orders  repository.OrderRepository
	metrics metrics.Recorder
	stats   StatsReader
}

// StatsReader reads the sales projection of an item.
type StatsReader interface {
	ItemStats(ctx context.Context, itemID string) (*model.ItemStats, error)
}

// ItemOption configures an ItemService.
type ItemOption func(*ItemService)

// WithStats serves item sales statistics from r.
func WithStats(r StatsReader) ItemOption {
	return func(s *ItemService) {
		s.stats = r
	}
}

// NewItemService creates a new ItemService.
func NewItemService(items repository.ItemRepository, orders repository.OrderRepository, recorder metrics.Recorder, opts ...ItemOption) *ItemService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	s := &ItemService{items: items, orders: orders, metrics: recorder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetItem returns a single item.
func (s *ItemService) GetItem(ctx context.Context, id string) (*model.Item, error) {
	if err := authorize(ctx, model.ScopeRead); err != nil {
		return nil, err
	}

	item, err := s.items.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Item", id)
		}
		return nil, fault("get item", err)
	}
	return item, nil
}

// ListItems returns a page of items and the total count.
func (s *ItemService) ListItems(ctx context.Context, skip, limit int) ([]*model.Item, int, error) {
	if err := authorize(ctx, model.ScopeRead); err != nil {
		return nil, 0, err
	}

	items, err := s.items.List(ctx, repository.NormalizePage(skip, limit))
	if err != nil {
		return nil, 0, fault("list items", err)
	}
	total, err := s.items.Count(ctx)
	if err != nil {
		return nil, 0, fault("count items", err)
	}
	return items, total, nil
}

// CreateItem validates and stores a new item.
func (s *ItemService) CreateItem(ctx context.Context, in model.ItemCreate) (*model.Item, error) {
	if err := authorize(ctx, model.ScopeWrite); err != nil {
		return nil, err
	}
	if err := validateItemCreate(in); err != nil {
		return nil, err
	}

	item, err := s.items.Create(ctx, newID(), in)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateName(in.Name)
		}
		return nil, fault("create item", err)
	}

	s.metrics.IncItemCreated()
	return item, nil
}

// UpdateItem applies a partial update. An empty update returns the item
// unchanged.
func (s *ItemService) UpdateItem(ctx context.Context, id string, in model.ItemUpdate) (*model.Item, error) {
	if err := authorize(ctx, model.ScopeWrite); err != nil {
		return nil, err
	}
	if err := validateItemUpdate(in); err != nil {
		return nil, err
	}
	if in.IsEmpty() {
		return s.GetItem(ctx, id)
	}

	item, err := s.items.Update(ctx, id, in)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("Item", id)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, duplicateName(*in.Name)
		}
		return nil, fault("update item", err)
	}

	s.metrics.IncItemUpdated()
	return item, nil
}

// DeleteItem removes an item that no order references.
func (s *ItemService) DeleteItem(ctx context.Context, id string) error {
	if err := authorize(ctx, model.ScopeAdmin); err != nil {
		return err
	}

	if _, err := s.items.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Item", id)
		}
		return fault("get item", err)
	}

	n, err := s.orders.CountByItem(ctx, id)
	if err != nil {
		return fault("count orders", err)
	}
	if n > 0 {
		return itemInUse(id, n)
	}

	if err := s.items.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperr.NotFound("Item", id)
		case errors.Is(err, repository.ErrInUse):
			return apperr.Conflict(fmt.Sprintf("Item '%s' has orders and cannot be deleted", id))
		}
		return fault("delete item", err)
	}

	s.metrics.IncItemDeleted()
	return nil
}

// GetItemStats returns the sales counters of an existing item. The
// counters are eventually consistent with the order log.
func (s *ItemService) GetItemStats(ctx context.Context, id string) (*model.ItemStats, error) {
	if err := authorize(ctx, model.ScopeRead); err != nil {
		return nil, err
	}
	if s.stats == nil {
		return nil, apperr.Application("Item statistics are not enabled")
	}

	if _, err := s.items.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Item", id)
		}
		return nil, fault("get item", err)
	}

	stats, err := s.stats.ItemStats(ctx, id)
	if err != nil {
		return nil, fault("get item stats", err)
	}
	return stats, nil
}

func duplicateName(name string) error {
	return apperr.Conflict(fmt.Sprintf("Item with name '%s' already exists", name))
}

func itemInUse(id string, orders int) error {
	return apperr.Conflict(fmt.Sprintf("Item '%s' has %d order(s) and cannot be deleted", id, orders))
}
