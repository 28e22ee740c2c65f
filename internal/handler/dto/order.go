package dto

import (
	"time"

	"github.com/stacklane/stacklane/internal/model"
)

// PlaceOrderRequest represents the request body for placing an order.
// Quantity rules are business rules and are checked by the service.
type PlaceOrderRequest struct {
	ItemID   string `json:"item_id" validate:"required,max=64"`
	Quantity int    `json:"quantity"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	DiscountBps    int64     `json:"discount_bps"`
	TotalCents     int64     `json:"total_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrderListResponse represents a page of orders.
type OrderListResponse struct {
	Data []OrderResponse `json:"data"`
	Meta ListMeta        `json:"meta"`
}

// ToOrderResponse converts an Order model to its DTO.
func ToOrderResponse(o *model.Order) *OrderResponse {
	return &OrderResponse{
		ID:             o.ID,
		ItemID:         o.ItemID,
		Quantity:       o.Quantity,
		UnitPriceCents: o.UnitPriceCents,
		DiscountBps:    o.DiscountBps,
		TotalCents:     o.TotalCents,
		CreatedAt:      o.CreatedAt,
	}
}

// ToOrderListResponse converts a page of orders.
func ToOrderListResponse(orders []*model.Order, total, skip, limit int) *OrderListResponse {
	data := make([]OrderResponse, len(orders))
	for i, o := range orders {
		data[i] = *ToOrderResponse(o)
	}
	return &OrderListResponse{Data: data, Meta: ListMeta{Total: total, Skip: skip, Limit: limit}}
}
