package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklane/stacklane/internal/apperr"
	"github.com/stacklane/stacklane/internal/events"
	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

// MsgInsufficientQuantity is reported when stock cannot cover an order.
const MsgInsufficientQuantity = "insufficient quantity"

// OrderService handles order placement and lifecycle.
type OrderService struct {
	items   repository.ItemRepository
	orders  repository.OrderRepository
	metrics metrics.Recorder
	events  events.Publisher
}

// OrderOption configures an OrderService.
type OrderOption func(*OrderService)

// WithEvents publishes order lifecycle events to p.
func WithEvents(p events.Publisher) OrderOption {
	return func(s *OrderService) {
		if p != nil {
			s.events = p
		}
	}
}

// NewOrderService creates a new OrderService.
func NewOrderService(items repository.ItemRepository, orders repository.OrderRepository, recorder metrics.Recorder, opts ...OrderOption) *OrderService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	s := &OrderService{items: items, orders: orders, metrics: recorder, events: events.Discard{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrderInput defines input for placing an order.
type PlaceOrderInput struct {
	ItemID   string
	Quantity int
}

// PlaceOrder takes stock from an item and records the priced order.
// Business rule failures leave storage untouched.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	if err := authorize(ctx, model.ScopeWrite); err != nil {
		return nil, err
	}

	if in.Quantity <= 0 {
		s.metrics.IncOrderRejected(metrics.RejectInvalidQuantity)
		return nil, apperr.Validation("Quantity must be positive", "quantity")
	}

	item, err := s.items.Get(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncOrderRejected(metrics.RejectItemNotFound)
			return nil, apperr.NotFound("Item", in.ItemID)
		}
		return nil, fault("get item", err)
	}

	if !item.IsActive {
		s.metrics.IncOrderRejected(metrics.RejectItemInactive)
		return nil, apperr.Application("Item is not available for ordering")
	}
	if !item.HasStock(in.Quantity) {
		s.metrics.IncOrderRejected(metrics.RejectInsufficientStock)
		return nil, apperr.Validation(MsgInsufficientQuantity, "quantity")
	}

	bps := BulkDiscountBps(in.Quantity)
	total, err := TotalPriceCents(item.UnitPriceCents, in.Quantity, bps)
	if err != nil {
		return nil, apperr.Validation("Order total is too large", "quantity")
	}

	// The stock check above can race with another order; the reservation is
	// the authoritative check.
	reserved, err := s.items.ReserveStock(ctx, item.ID, in.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			s.metrics.IncOrderRejected(metrics.RejectInsufficientStock)
			return nil, apperr.Validation(MsgInsufficientQuantity, "quantity")
		case errors.Is(err, repository.ErrNotFound):
			s.metrics.IncOrderRejected(metrics.RejectItemNotFound)
			return nil, apperr.NotFound("Item", in.ItemID)
		}
		return nil, fault("reserve stock", err)
	}

	order, err := s.orders.Create(ctx, &model.Order{
		ID:             newID(),
		ItemID:         reserved.ID,
		Quantity:       in.Quantity,
		UnitPriceCents: item.UnitPriceCents,
		DiscountBps:    bps,
		TotalCents:     total,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The item was deleted after the reservation; its stock went with it.
			s.metrics.IncOrderRejected(metrics.RejectItemNotFound)
			return nil, apperr.NotFound("Item", in.ItemID)
		}
		return nil, fault("create order", errors.Join(err, s.release(ctx, item.ID, in.Quantity)))
	}

	s.metrics.IncOrderPlaced()
	s.events.PublishAsync(events.OrderPlaced(order))
	return order, nil
}

// GetOrder returns a single order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if err := authorize(ctx, model.ScopeRead); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Order", id)
		}
		return nil, fault("get order", err)
	}
	return order, nil
}

// ListOrders returns a page of orders and the total count.
func (s *OrderService) ListOrders(ctx context.Context, skip, limit int) ([]*model.Order, int, error) {
	if err := authorize(ctx, model.ScopeRead); err != nil {
		return nil, 0, err
	}

	orders, err := s.orders.List(ctx, repository.NormalizePage(skip, limit))
	if err != nil {
		return nil, 0, fault("list orders", err)
	}
	total, err := s.orders.Count(ctx)
	if err != nil {
		return nil, 0, fault("count orders", err)
	}
	return orders, total, nil
}

// CancelOrder deletes an order and returns its units to stock.
func (s *OrderService) CancelOrder(ctx context.Context, id string) error {
	if err := authorize(ctx, model.ScopeAdmin); err != nil {
		return err
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Order", id)
		}
		return fault("get order", err)
	}

	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Order", id)
		}
		return fault("delete order", err)
	}

	// The order is gone, so its units are returned even if the caller has
	// gone away.
	if err := s.release(ctx, order.ItemID, order.Quantity); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fault("cancel order", err)
	}

	s.metrics.IncOrderCancelled()
	s.events.PublishAsync(events.OrderCancelled(order))
	return nil
}

// release returns reserved units to an item. It runs on a detached context
// so a cancelled request still returns its stock.
func (s *OrderService) release(ctx context.Context, itemID string, qty int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.items.ReleaseStock(ctx, itemID, qty); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
