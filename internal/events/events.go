// Package events streams order lifecycle events through Redis and folds
// them into per-item sales statistics.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/stacklane/stacklane/internal/model"
)

// Event types.
const (
	TypeOrderPlaced    = "order.placed"
	TypeOrderCancelled = "order.cancelled"
)

const maxIDLength = 64

// Event is the payload stored in the stream.
type Event struct {
	Type       string `json:"type"`
	OrderID    string `json:"oid"`
	ItemID     string `json:"iid"`
	Quantity   int    `json:"qty"`
	TotalCents int64  `json:"total"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// OrderPlaced builds the event for a newly placed order.
func OrderPlaced(o *model.Order) Event {
	return fromOrder(TypeOrderPlaced, o)
}

// OrderCancelled builds the event for a cancelled order.
func OrderCancelled(o *model.Order) Event {
	return fromOrder(TypeOrderCancelled, o)
}

func fromOrder(typ string, o *model.Order) Event {
	return Event{
		Type:       typ,
		OrderID:    o.ID,
		ItemID:     o.ItemID,
		Quantity:   o.Quantity,
		TotalCents: o.TotalCents,
		OccurredAt: time.Now().UnixMilli(),
	}
}

// Validate checks the payload before it is applied.
func (e Event) Validate() error {
	switch e.Type {
	case TypeOrderPlaced, TypeOrderCancelled:
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown type %q", e.Type)
	}
	if e.OrderID == "" || len(e.OrderID) > maxIDLength {
		return errors.New("order id is missing or too long")
	}
	if e.ItemID == "" || len(e.ItemID) > maxIDLength {
		return errors.New("item id is missing or too long")
	}
	if e.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if e.TotalCents < 0 {
		return errors.New("total must not be negative")
	}
	if e.OccurredAt <= 0 {
		return errors.New("occurred_at must be set")
	}
	return nil
}

// Publisher hands events to the stream without blocking the caller.
type Publisher interface {
	PublishAsync(e Event)
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// PublishAsync does nothing.
func (Discard) PublishAsync(Event) {}
