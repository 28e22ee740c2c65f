package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (n *NoopRecorder) IncItemCreated()                                       {}
func (n *NoopRecorder) IncItemUpdated()                                       {}
func (n *NoopRecorder) IncItemDeleted()                                       {}
func (n *NoopRecorder) IncItemCacheHit()                                      {}
func (n *NoopRecorder) IncItemCacheMiss()                                     {}
func (n *NoopRecorder) IncOrderPlaced()                                       {}
func (n *NoopRecorder) IncOrderRejected(string)                               {}
func (n *NoopRecorder) IncOrderCancelled()                                    {}
func (n *NoopRecorder) IncEventPublished(string)                              {}
func (n *NoopRecorder) IncEventProcessed(string, string)                      {}
func (n *NoopRecorder) SetEventQueueDepth(string, int64)                      {}
func (n *NoopRecorder) ObserveWebhookDelivery(string, time.Duration)          {}
func (n *NoopRecorder) IncDependencyResolved(string)                          {}
