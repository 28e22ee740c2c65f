package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklane/stacklane/internal/metrics"
)

const (
	// StatsGroup is the consumer group that maintains item statistics.
	StatsGroup = "item_stats"

	// DefaultBatchSize is the max entries read per call.
	DefaultBatchSize = 100

	// DefaultBlockTimeout is how long a read waits for new entries.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of attempts per entry.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often stuck pending entries are scanned.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before a pending entry is reclaimed.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often queue depth is refreshed.
	DefaultMetricsInterval = 5 * time.Second

	deadLetterMaxLen = 10000

	// jitterFactor spreads retries of concurrent consumers by up to ±20%.
	jitterFactor = 0.2
)

// Applier folds a decoded event into a projection.
type Applier interface {
	Apply(ctx context.Context, e Event) (bool, error)
}

// Worker consumes the order event stream through a consumer group.
// Entries are acknowledged only after they are applied, so a crash
// replays them; Applier implementations must be idempotent.
type Worker struct {
	redis      *redis.Client
	group      string
	applier    Applier
	logger     *slog.Logger
	metrics    metrics.Recorder
	consumerID string

	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	retryBase       time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration

	startID      string
	claimStartID string
	lastClaim    time.Time
	lastMetrics  time.Time

	mu       sync.Mutex
	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a worker that feeds the entries of group to applier.
func NewWorker(client *redis.Client, group string, applier Applier, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		group:           group,
		applier:         applier,
		logger:          logger.With("component", "events.worker", "group", group, "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		retryBase:       500 * time.Millisecond,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		startID:         "0",
		claimStartID:    "0-0",
	}
}

// NewConsumerID returns a consumer name unique to this process.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetRetryBackoff overrides the base of the exponential retry backoff.
func (w *Worker) SetRetryBackoff(base time.Duration) {
	if base > 0 {
		w.retryBase = base
	}
}

// SetStartID sets where a newly created group starts reading: "0" replays
// the whole stream, "$" only sees entries added afterwards.
func (w *Worker) SetStartID(id string) {
	if id != "" {
		w.startID = id
	}
}

// SetMaxRetries overrides the attempts per entry before it is left pending.
func (w *Worker) SetMaxRetries(n int) {
	if n > 0 {
		w.maxRetries = n
	}
}

// SetClaimIdle overrides the pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// Run consumes until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("events worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()
		if draining {
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("events worker stopping")
			return nil
		default:
		}

		if err := w.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("process error", "error", err)
			sleep(ctx, time.Second)
		}
	}
}

// Shutdown stops the worker after the in-flight batch. It matches
// server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		w.logger.Info("events worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("events worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, w.group, w.startID).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// processOnce handles one batch: reclaimed entries first, then new ones.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	messages, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending entries", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	var acks []string
	var failed error
	for _, msg := range messages {
		e, ok := w.decode(ctx, msg)
		if !ok {
			acks = append(acks, msg.ID)
			continue
		}
		if err := w.applyWithRetry(ctx, e); err != nil {
			// Left pending; a later claim retries it.
			w.logger.Error("event apply failed after retries",
				"message_id", msg.ID,
				"order_id", e.OrderID,
				"error", err,
			)
			w.metrics.IncEventProcessed(w.group, metrics.EventFailed)
			failed = err
			continue
		}
		acks = append(acks, msg.ID)
	}

	if err := w.ack(ctx, acks); err != nil {
		return err
	}
	return failed
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}
	w.lastClaim = time.Now()

	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    w.group,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == w.group {
			w.metrics.SetEventQueueDepth(w.group, group.Pending+group.Lag)
			return
		}
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// decode parses msg. Undecodable entries are dead-lettered and reported
// as not ok so the caller acknowledges them.
func (w *Worker) decode(ctx context.Context, msg redis.XMessage) (Event, bool) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		w.deadLetter(ctx, msg, "invalid_format", "payload field missing or not a string")
		return Event{}, false
	}

	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		w.deadLetter(ctx, msg, "unmarshal_error", err.Error())
		return Event{}, false
	}
	if err := e.Validate(); err != nil {
		w.deadLetter(ctx, msg, "validation_error", err.Error())
		return Event{}, false
	}
	return e, true
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering poison entry",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"group":            w.group,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream", "message_id", msg.ID, "error", err)
	}
	w.metrics.IncEventProcessed(w.group, metrics.EventDeadLettered)
}

func (w *Worker) applyWithRetry(ctx context.Context, e Event) error {
	var lastErr error
	for attempt := 0; attempt < w.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := jitter(w.retryBase << (attempt - 1))
			w.logger.Warn("event apply failed, retrying",
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}

		applied, err := w.applier.Apply(ctx, e)
		if err == nil {
			if applied {
				w.metrics.IncEventProcessed(w.group, metrics.EventSuccess)
			} else {
				w.logger.Debug("event skipped by applier", "type", e.Type, "order_id", e.OrderID)
			}
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (w *Worker) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, StreamKey, w.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func jitter(d time.Duration) time.Duration {
	spread := float64(d) * jitterFactor
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
