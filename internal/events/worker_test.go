package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklane/stacklane/internal/metrics"
)

type flakyApplier struct {
	mu       sync.Mutex
	failures int
	calls    int
	applied  []Event
}

func (f *flakyApplier) Apply(_ context.Context, e Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return false, errors.New("redis unavailable")
	}
	f.applied = append(f.applied, e)
	return true, nil
}

func newTestWorker(t *testing.T, client *redis.Client, applier Applier, recorder metrics.Recorder) *Worker {
	t.Helper()
	w := NewWorker(client, StatsGroup, applier, discardLogger(), "test-consumer", recorder)
	w.SetBlockTimeout(10 * time.Millisecond)
	w.SetRetryBackoff(time.Millisecond)
	require.NoError(t, w.ensureConsumerGroup(context.Background()))
	return w
}

func pending(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), StreamKey, StatsGroup).Result()
	require.NoError(t, err)
	return p.Count
}

func TestWorker_AppliesAndAcks(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	recorder := metrics.NewInMemory()
	stats := NewStats(client)
	w := newTestWorker(t, client, stats, recorder)

	p := NewStreamPublisher(client, discardLogger(), nil)
	_, err := p.Publish(ctx, placed("ord-1", "itm-1", 2, 2000))
	require.NoError(t, err)
	_, err = p.Publish(ctx, placed("ord-2", "itm-1", 1, 1000))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))

	got, err := stats.ItemStats(ctx, "itm-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.OrdersPlaced)
	assert.Equal(t, int64(3), got.UnitsSold)
	assert.Equal(t, int64(3000), got.RevenueCents)

	assert.Zero(t, pending(t, client))
	assert.Equal(t, uint64(2), recorder.Snapshot().EventsProcessed[metrics.EventSuccess])
}

func TestWorker_DeadLettersPoisonEntries(t *testing.T) {
	m, client := newRedis(t)
	ctx := context.Background()
	recorder := metrics.NewInMemory()
	applier := &flakyApplier{}
	w := newTestWorker(t, client, applier, recorder)

	bad := []map[string]interface{}{
		{"data": "missing payload"},
		{"payload": "{not json"},
		{"payload": `{"type":"order.placed","oid":"ord-1","iid":"itm-1","qty":0,"total":0,"t":1}`},
	}
	for _, values := range bad {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: StreamKey, Values: values}).Err())
	}

	require.NoError(t, w.processOnce(ctx))

	assert.Zero(t, applier.calls)
	assert.Zero(t, pending(t, client))

	dlq, err := m.Stream(DeadLetterStreamKey)
	require.NoError(t, err)
	assert.Len(t, dlq, len(bad))
	assert.Equal(t, uint64(len(bad)), recorder.Snapshot().EventsProcessed[metrics.EventDeadLettered])
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	applier := &flakyApplier{failures: DefaultMaxRetries - 1}
	w := newTestWorker(t, client, applier, nil)

	_, err := NewStreamPublisher(client, discardLogger(), nil).Publish(ctx, placed("ord-1", "itm-1", 1, 100))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))
	assert.Equal(t, DefaultMaxRetries, applier.calls)
	assert.Len(t, applier.applied, 1)
	assert.Zero(t, pending(t, client))
}

func TestWorker_ReclaimsFailedEntries(t *testing.T) {
	m, client := newRedis(t)
	ctx := context.Background()
	recorder := metrics.NewInMemory()
	applier := &flakyApplier{failures: DefaultMaxRetries}
	w := newTestWorker(t, client, applier, recorder)

	_, err := NewStreamPublisher(client, discardLogger(), nil).Publish(ctx, placed("ord-1", "itm-1", 1, 100))
	require.NoError(t, err)

	now := time.Now()
	m.SetTime(now)
	assert.Error(t, w.processOnce(ctx))
	assert.Equal(t, int64(1), pending(t, client))
	assert.Equal(t, uint64(1), recorder.Snapshot().EventsProcessed[metrics.EventFailed])

	m.SetTime(now.Add(DefaultClaimIdle + time.Second))
	w.lastClaim = time.Time{}
	require.NoError(t, w.processOnce(ctx))

	assert.Len(t, applier.applied, 1)
	assert.Zero(t, pending(t, client))
}

func TestWorker_QueueDepth(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	recorder := metrics.NewInMemory()
	w := newTestWorker(t, client, &flakyApplier{}, recorder)

	_, err := NewStreamPublisher(client, discardLogger(), nil).Publish(ctx, placed("ord-1", "itm-1", 1, 100))
	require.NoError(t, err)

	w.maybeUpdateQueueDepth(ctx)
	assert.Positive(t, recorder.Snapshot().EventQueueDepth[StatsGroup])
}

func TestWorker_RunAndShutdown(t *testing.T) {
	_, client := newRedis(t)
	stats := NewStats(client)
	w := NewWorker(client, StatsGroup, stats, discardLogger(), NewConsumerID(), nil)
	w.SetBlockTimeout(10 * time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	_, err := NewStreamPublisher(client, discardLogger(), nil).Publish(context.Background(), placed("ord-1", "itm-1", 4, 400))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := stats.ItemStats(context.Background(), "itm-1")
		return err == nil && got.UnitsSold == 4
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	require.NoError(t, <-errCh)

	assert.Error(t, w.Run(context.Background()), "a worker runs once")
}

func TestWorker_ShutdownBeforeRun(t *testing.T) {
	_, client := newRedis(t)
	w := NewWorker(client, StatsGroup, NewStats(client), discardLogger(), "c", nil)
	assert.NoError(t, w.Shutdown(context.Background()))
}
