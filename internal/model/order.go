package model

import "time"

// Order records units taken from an item's stock at a fixed price.
type Order struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	DiscountBps    int64     `json:"discount_bps"`
	TotalCents     int64     `json:"total_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// Clone returns a copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
