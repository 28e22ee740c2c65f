package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports metrics through its own Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	itemEvents  *prometheus.CounterVec
	itemCache   *prometheus.CounterVec
	orderEvents *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	resolutions *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
	eventsProcessed *prometheus.CounterVec
	eventQueueDepth *prometheus.GaugeVec

	webhookDeliveries *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
}

// NewPrometheus creates a recorder whose metrics are prefixed with namespace.
func NewPrometheus(namespace string) *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		itemEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "events_total",
			Help:      "Item mutations by kind.",
		}, []string{"event"}),
		itemCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "cache_lookups_total",
			Help:      "Item cache lookups by result.",
		}, []string{"result"}),
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "events_total",
			Help:      "Order lifecycle events.",
		}, []string{"event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Orders rejected by business rules.",
		}, []string{"reason"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "resolutions_total",
			Help:      "First-time dependency constructions by feature.",
		}, []string{"feature"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Order events published to the stream by result.",
		}, []string{"result"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Order events consumed by consumer group and result.",
		}, []string{"group", "result"}),
		eventQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "queue_depth",
			Help:      "Pending plus unread entries per consumer group.",
		}, []string{"group"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "deliveries_total",
			Help:      "Webhook delivery attempts by result.",
		}, []string{"result"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of webhook delivery attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	p.registry.MustRegister(
		p.httpRequests,
		p.httpDuration,
		p.itemEvents,
		p.itemCache,
		p.orderEvents,
		p.rejections,
		p.resolutions,
		p.eventsPublished,
		p.eventsProcessed,
		p.eventQueueDepth,
		p.webhookDeliveries,
		p.webhookDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return p
}

// Handler exposes the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncItemCreated()   { p.itemEvents.WithLabelValues("created").Inc() }
func (p *PrometheusRecorder) IncItemUpdated()   { p.itemEvents.WithLabelValues("updated").Inc() }
func (p *PrometheusRecorder) IncItemDeleted()   { p.itemEvents.WithLabelValues("deleted").Inc() }
func (p *PrometheusRecorder) IncItemCacheHit()  { p.itemCache.WithLabelValues("hit").Inc() }
func (p *PrometheusRecorder) IncItemCacheMiss() { p.itemCache.WithLabelValues("miss").Inc() }
func (p *PrometheusRecorder) IncOrderPlaced()   { p.orderEvents.WithLabelValues("placed").Inc() }
func (p *PrometheusRecorder) IncOrderCancelled() {
	p.orderEvents.WithLabelValues("cancelled").Inc()
}

func (p *PrometheusRecorder) IncOrderRejected(reason string) {
	p.rejections.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncDependencyResolved(feature string) {
	p.resolutions.WithLabelValues(feature).Inc()
}

func (p *PrometheusRecorder) IncEventPublished(result string) {
	p.eventsPublished.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncEventProcessed(group, result string) {
	p.eventsProcessed.WithLabelValues(group, result).Inc()
}

func (p *PrometheusRecorder) SetEventQueueDepth(group string, depth int64) {
	p.eventQueueDepth.WithLabelValues(group).Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveWebhookDelivery(result string, duration time.Duration) {
	p.webhookDeliveries.WithLabelValues(result).Inc()
	p.webhookDuration.Observe(duration.Seconds())
}
