// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// HTTP
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Items
	IncItemCreated()
	IncItemUpdated()
	IncItemDeleted()
	IncItemCacheHit()
	IncItemCacheMiss()

	// Orders
	IncOrderPlaced()
	IncOrderRejected(reason string)
	IncOrderCancelled()

	// Order event stream
	IncEventPublished(result string)
	IncEventProcessed(group, result string)
	SetEventQueueDepth(group string, depth int64)

	// Webhooks
	ObserveWebhookDelivery(result string, duration time.Duration)

	// Dependency container
	IncDependencyResolved(feature string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Order rejection reasons.
const (
	RejectInvalidQuantity   = "invalid_quantity"
	RejectItemNotFound      = "item_not_found"
	RejectItemInactive      = "item_inactive"
	RejectInsufficientStock = "insufficient_stock"
)

// Event outcomes.
const (
	EventSuccess      = "success"
	EventDropped      = "dropped"
	EventFailed       = "failed"
	EventDeadLettered = "dead_lettered"
)

// Webhook delivery outcomes.
const (
	WebhookDelivered = "delivered"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)
