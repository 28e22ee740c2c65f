package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()

	m.IncItemCreated()
	m.IncItemCreated()
	m.IncItemDeleted()
	m.IncOrderPlaced()
	m.IncOrderRejected(RejectInsufficientStock)
	m.IncOrderRejected(RejectInsufficientStock)
	m.IncDependencyResolved("items")
	m.IncEventPublished(EventSuccess)
	m.IncEventProcessed("item_stats", EventDeadLettered)
	m.SetEventQueueDepth("item_stats", 7)
	m.ObserveWebhookDelivery(WebhookDelivered, time.Millisecond)
	m.ObserveHTTPRequest("GET", "/", 200, 2*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ItemsCreated)
	assert.Equal(t, uint64(1), snap.ItemsDeleted)
	assert.Equal(t, uint64(1), snap.OrdersPlaced)
	assert.Equal(t, uint64(2), snap.OrdersRejected[RejectInsufficientStock])
	assert.Equal(t, uint64(1), snap.DependenciesResolved["items"])
	assert.Equal(t, uint64(1), snap.EventsPublished[EventSuccess])
	assert.Equal(t, uint64(1), snap.EventsProcessed[EventDeadLettered])
	assert.Equal(t, int64(7), snap.EventQueueDepth["item_stats"])
	assert.Equal(t, uint64(1), snap.WebhookDeliveries[WebhookDelivered])
	assert.Equal(t, uint64(1), snap.HTTPRequests)
	assert.Equal(t, (2 * time.Millisecond).Nanoseconds(), snap.HTTPDurationTotalNs)

	// Snapshots are detached from later updates.
	m.IncOrderRejected(RejectInsufficientStock)
	assert.Equal(t, uint64(2), snap.OrdersRejected[RejectInsufficientStock])
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	p := NewPrometheus("test")

	p.IncOrderRejected(RejectItemNotFound)
	p.IncOrderRejected(RejectItemNotFound)
	p.IncItemCacheHit()
	p.SetEventQueueDepth("item_stats", 3)
	p.ObserveWebhookDelivery(WebhookFailed, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.rejections.WithLabelValues(RejectItemNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.itemCache.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.eventQueueDepth.WithLabelValues("item_stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.webhookDeliveries.WithLabelValues(WebhookFailed)))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	p := NewPrometheus("test")
	p.ObserveHTTPRequest("GET", "/api/v1/items", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_http_requests_total{method="GET",route="/api/v1/items",status="200"} 1`), body)
}
