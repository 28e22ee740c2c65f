package model

// ItemStats aggregates the order history of one item. Cancellations
// subtract their units and revenue.
type ItemStats struct {
	ItemID          string `redis:"-"`
	OrdersPlaced    int64  `redis:"orders_placed"`
	OrdersCancelled int64  `redis:"orders_cancelled"`
	UnitsSold       int64  `redis:"units_sold"`
	RevenueCents    int64  `redis:"revenue_cents"`
}
