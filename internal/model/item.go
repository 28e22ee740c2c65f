// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// Item is a catalog entry that can be ordered while it has stock.
type Item struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	if i.Description != nil {
		d := *i.Description
		c.Description = &d
	}
	return &c
}

// HasStock reports whether qty units can be taken from the item.
func (i *Item) HasStock(qty int) bool {
	return qty > 0 && i.Quantity >= qty
}

// ItemCreate holds the data needed to create an item.
type ItemCreate struct {
	Name           string
	Description    *string
	Quantity       int
	UnitPriceCents int64
}

// ItemUpdate holds a partial update. Nil fields are left unchanged.
type ItemUpdate struct {
	Name           *string
	Description    *string
	IsActive       *bool
	Quantity       *int
	UnitPriceCents *int64
}

// Apply returns a copy of item with the update applied.
func (u ItemUpdate) Apply(item *Item, now time.Time) *Item {
	out := item.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Description != nil {
		d := *u.Description
		out.Description = &d
	}
	if u.IsActive != nil {
		out.IsActive = *u.IsActive
	}
	if u.Quantity != nil {
		out.Quantity = *u.Quantity
	}
	if u.UnitPriceCents != nil {
		out.UnitPriceCents = *u.UnitPriceCents
	}
	out.UpdatedAt = now
	return out
}

// IsEmpty reports whether the update changes nothing.
func (u ItemUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.IsActive == nil &&
		u.Quantity == nil && u.UnitPriceCents == nil
}

// CachedItem represents item data stored in a Redis hash.
// Uses string types for Redis hash compatibility.
type CachedItem struct {
	ID             string `redis:"id"`
	Name           string `redis:"name"`
	Description    string `redis:"description"`
	HasDescription string `redis:"has_description"` // "1" or "0"
	IsActive       string `redis:"is_active"`       // "1" or "0"
	Quantity       string `redis:"quantity"`
	UnitPriceCents string `redis:"unit_price_cents"`
	CreatedAt      string `redis:"created_at"` // Unix nanoseconds
	UpdatedAt      string `redis:"updated_at"` // Unix nanoseconds
}

// ToCachedItem converts an Item to its cached form.
func (i *Item) ToCachedItem() *CachedItem {
	cached := &CachedItem{
		ID:             i.ID,
		Name:           i.Name,
		HasDescription: boolToString(i.Description != nil),
		IsActive:       boolToString(i.IsActive),
		Quantity:       strconv.Itoa(i.Quantity),
		UnitPriceCents: strconv.FormatInt(i.UnitPriceCents, 10),
		CreatedAt:      strconv.FormatInt(i.CreatedAt.UnixNano(), 10),
		UpdatedAt:      strconv.FormatInt(i.UpdatedAt.UnixNano(), 10),
	}
	if i.Description != nil {
		cached.Description = *i.Description
	}
	return cached
}

// ToItem converts a CachedItem back to an Item.
// Malformed numeric fields are reported as errors so the caller can fall
// back to the primary store.
func (c *CachedItem) ToItem() (*Item, error) {
	qty, err := strconv.Atoi(c.Quantity)
	if err != nil {
		return nil, err
	}
	price, err := strconv.ParseInt(c.UnitPriceCents, 10, 64)
	if err != nil {
		return nil, err
	}
	created, err := strconv.ParseInt(c.CreatedAt, 10, 64)
	if err != nil {
		return nil, err
	}
	updated, err := strconv.ParseInt(c.UpdatedAt, 10, 64)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:             c.ID,
		Name:           c.Name,
		IsActive:       c.IsActive == "1",
		Quantity:       qty,
		UnitPriceCents: price,
		CreatedAt:      time.Unix(0, created).UTC(),
		UpdatedAt:      time.Unix(0, updated).UTC(),
	}
	if c.HasDescription == "1" {
		d := c.Description
		item.Description = &d
	}
	return item, nil
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
