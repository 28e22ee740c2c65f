package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests         uint64
	HTTPDurationTotalNs  int64
	ItemsCreated         uint64
	ItemsUpdated         uint64
	ItemsDeleted         uint64
	ItemCacheHits        uint64
	ItemCacheMisses      uint64
	OrdersPlaced         uint64
	OrdersCancelled      uint64
	OrdersRejected       map[string]uint64
	EventsPublished      map[string]uint64
	EventsProcessed      map[string]uint64
	EventQueueDepth      map[string]int64
	WebhookDeliveries    map[string]uint64
	DependenciesResolved map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	httpRequests        uint64
	httpDurationTotalNs int64
	itemsCreated        uint64
	itemsUpdated        uint64
	itemsDeleted        uint64
	itemCacheHits       uint64
	itemCacheMisses     uint64
	ordersPlaced        uint64
	ordersCancelled     uint64

	mu        sync.Mutex
	rejected  map[string]uint64
	published map[string]uint64
	processed map[string]uint64
	depth     map[string]int64
	webhooks  map[string]uint64
	resolved  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		rejected:  make(map[string]uint64),
		published: make(map[string]uint64),
		processed: make(map[string]uint64),
		depth:     make(map[string]int64),
		webhooks:  make(map[string]uint64),
		resolved:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	rejected := copyCounts(m.rejected)
	published := copyCounts(m.published)
	processed := copyCounts(m.processed)
	webhooks := copyCounts(m.webhooks)
	resolved := copyCounts(m.resolved)
	depth := make(map[string]int64, len(m.depth))
	for k, v := range m.depth {
		depth[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		HTTPRequests:         atomic.LoadUint64(&m.httpRequests),
		HTTPDurationTotalNs:  atomic.LoadInt64(&m.httpDurationTotalNs),
		ItemsCreated:         atomic.LoadUint64(&m.itemsCreated),
		ItemsUpdated:         atomic.LoadUint64(&m.itemsUpdated),
		ItemsDeleted:         atomic.LoadUint64(&m.itemsDeleted),
		ItemCacheHits:        atomic.LoadUint64(&m.itemCacheHits),
		ItemCacheMisses:      atomic.LoadUint64(&m.itemCacheMisses),
		OrdersPlaced:         atomic.LoadUint64(&m.ordersPlaced),
		OrdersCancelled:      atomic.LoadUint64(&m.ordersCancelled),
		OrdersRejected:       rejected,
		EventsPublished:      published,
		EventsProcessed:      processed,
		EventQueueDepth:      depth,
		WebhookDeliveries:    webhooks,
		DependenciesResolved: resolved,
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ObserveHTTPRequest counts a request and its duration.
func (m *InMemoryRecorder) ObserveHTTPRequest(_, _ string, _ int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
	atomic.AddInt64(&m.httpDurationTotalNs, duration.Nanoseconds())
}

// IncItemCreated increments item created counter.
func (m *InMemoryRecorder) IncItemCreated() {
	atomic.AddUint64(&m.itemsCreated, 1)
}

// IncItemUpdated increments item updated counter.
func (m *InMemoryRecorder) IncItemUpdated() {
	atomic.AddUint64(&m.itemsUpdated, 1)
}

// IncItemDeleted increments item deleted counter.
func (m *InMemoryRecorder) IncItemDeleted() {
	atomic.AddUint64(&m.itemsDeleted, 1)
}

// IncItemCacheHit increments item cache hit counter.
func (m *InMemoryRecorder) IncItemCacheHit() {
	atomic.AddUint64(&m.itemCacheHits, 1)
}

// IncItemCacheMiss increments item cache miss counter.
func (m *InMemoryRecorder) IncItemCacheMiss() {
	atomic.AddUint64(&m.itemCacheMisses, 1)
}

// IncOrderPlaced increments order placed counter.
func (m *InMemoryRecorder) IncOrderPlaced() {
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderRejected counts a rejected order by reason.
func (m *InMemoryRecorder) IncOrderRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

// IncOrderCancelled increments order cancelled counter.
func (m *InMemoryRecorder) IncOrderCancelled() {
	atomic.AddUint64(&m.ordersCancelled, 1)
}

// IncEventPublished counts a publish attempt by outcome.
func (m *InMemoryRecorder) IncEventPublished(result string) {
	m.mu.Lock()
	m.published[result]++
	m.mu.Unlock()
}

// IncEventProcessed counts a consumed event by outcome. Groups are
// summed.
func (m *InMemoryRecorder) IncEventProcessed(_, result string) {
	m.mu.Lock()
	m.processed[result]++
	m.mu.Unlock()
}

// SetEventQueueDepth records the backlog of a consumer group.
func (m *InMemoryRecorder) SetEventQueueDepth(group string, depth int64) {
	m.mu.Lock()
	m.depth[group] = depth
	m.mu.Unlock()
}

// ObserveWebhookDelivery counts a delivery attempt by outcome.
func (m *InMemoryRecorder) ObserveWebhookDelivery(result string, _ time.Duration) {
	m.mu.Lock()
	m.webhooks[result]++
	m.mu.Unlock()
}

// IncDependencyResolved counts a first-time construction of feature.
func (m *InMemoryRecorder) IncDependencyResolved(feature string) {
	m.mu.Lock()
	m.resolved[feature]++
	m.mu.Unlock()
}
