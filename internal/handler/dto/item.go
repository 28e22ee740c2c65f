package dto

import (
	"time"

	"github.com/stacklane/stacklane/internal/model"
)

// CreateItemRequest represents the request body for creating an item.
type CreateItemRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Quantity       int     `json:"quantity" validate:"gte=0"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"gte=0"`
}

// ToModel converts the request to the service input.
func (r CreateItemRequest) ToModel() model.ItemCreate {
	return model.ItemCreate{
		Name:           r.Name,
		Description:    r.Description,
		Quantity:       r.Quantity,
		UnitPriceCents: r.UnitPriceCents,
	}
}

// UpdateItemRequest represents a partial update. Absent fields are unchanged.
type UpdateItemRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive       *bool   `json:"is_active,omitempty"`
	Quantity       *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	UnitPriceCents *int64  `json:"unit_price_cents,omitempty" validate:"omitempty,gte=0"`
}

// ToModel converts the request to the service input.
func (r UpdateItemRequest) ToModel() model.ItemUpdate {
	return model.ItemUpdate{
		Name:           r.Name,
		Description:    r.Description,
		IsActive:       r.IsActive,
		Quantity:       r.Quantity,
		UnitPriceCents: r.UnitPriceCents,
	}
}

// ItemResponse represents an item in API responses.
type ItemResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ItemListResponse represents a page of items.
type ItemListResponse struct {
	Data []ItemResponse `json:"data"`
	Meta ListMeta       `json:"meta"`
}

// ToItemResponse converts an Item model to its DTO.
func ToItemResponse(item *model.Item) *ItemResponse {
	return &ItemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Description:    item.Description,
		IsActive:       item.IsActive,
		Quantity:       item.Quantity,
		UnitPriceCents: item.UnitPriceCents,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

// ToItemListResponse converts a page of items.
func ToItemListResponse(items []*model.Item, total, skip, limit int) *ItemListResponse {
	data := make([]ItemResponse, len(items))
	for i, item := range items {
		data[i] = *ToItemResponse(item)
	}
	return &ItemListResponse{Data: data, Meta: ListMeta{Total: total, Skip: skip, Limit: limit}}
}

// ItemStatsResponse reports the sales counters of an item.
type ItemStatsResponse struct {
	ItemID          string `json:"item_id"`
	OrdersPlaced    int64  `json:"orders_placed"`
	OrdersCancelled int64  `json:"orders_cancelled"`
	UnitsSold       int64  `json:"units_sold"`
	RevenueCents    int64  `json:"revenue_cents"`
}

// ToItemStatsResponse converts ItemStats to its DTO.
func ToItemStatsResponse(s *model.ItemStats) *ItemStatsResponse {
	return &ItemStatsResponse{
		ItemID:          s.ItemID,
		OrdersPlaced:    s.OrdersPlaced,
		OrdersCancelled: s.OrdersCancelled,
		UnitsSold:       s.UnitsSold,
		RevenueCents:    s.RevenueCents,
	}
}
