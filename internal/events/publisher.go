package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklane/stacklane/internal/metrics"
)

const (
	// StreamKey is the Redis stream for order events.
	StreamKey = "stream:order_events"

	// DeadLetterStreamKey receives entries the worker cannot decode.
	DeadLetterStreamKey = "stream:order_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds a single asynchronous publish.
	PublishTimeout = 250 * time.Millisecond
)

// StreamPublisher appends events to the order event stream.
type StreamPublisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	wg sync.WaitGroup
}

// NewStreamPublisher creates a publisher on client.
func NewStreamPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *StreamPublisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &StreamPublisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish appends e to the stream and returns the entry ID.
func (p *StreamPublisher) Publish(ctx context.Context, e Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes in the background. Failures are logged and
// counted, never returned: the order itself is already committed.
func (p *StreamPublisher) PublishAsync(e Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		id, err := p.Publish(ctx, e)
		if err != nil {
			p.logger.Warn("failed to publish order event",
				"type", e.Type,
				"order_id", e.OrderID,
				"error", err,
			)
			p.metrics.IncEventPublished(metrics.EventDropped)
			return
		}

		p.logger.Debug("order event published", "type", e.Type, "order_id", e.OrderID, "stream_id", id)
		p.metrics.IncEventPublished(metrics.EventSuccess)
	}()
}

// Close waits for in-flight publishes.
func (p *StreamPublisher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
