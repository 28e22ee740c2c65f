package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklane/stacklane/internal/model"
)

const (
	statsKeyPrefix = "stats:item:"
	seenKeyPrefix  = "events:seen:"

	// seenTTL bounds how long a redelivered event is recognised.
	seenTTL = 7 * 24 * time.Hour
)

// applyScript folds one event into an item's counters exactly once.
// KEYS[1] is the dedupe marker, KEYS[2] the stats hash.
var applyScript = redis.NewScript(`
	if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', tonumber(ARGV[1])) then
		return 0
	end
	redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
	redis.call('HINCRBY', KEYS[2], 'units_sold', tonumber(ARGV[3]))
	redis.call('HINCRBY', KEYS[2], 'revenue_cents', tonumber(ARGV[4]))
	return 1
`)

// Stats keeps per-item sales counters in Redis hashes.
type Stats struct {
	redis *redis.Client
}

// NewStats creates a Stats store on client.
func NewStats(client *redis.Client) *Stats {
	return &Stats{redis: client}
}

// Apply folds e into the counters of its item. It reports false when the
// event was already applied.
func (s *Stats) Apply(ctx context.Context, e Event) (bool, error) {
	counter := "orders_placed"
	units, revenue := int64(e.Quantity), e.TotalCents
	if e.Type == TypeOrderCancelled {
		counter = "orders_cancelled"
		units, revenue = -units, -revenue
	}

	applied, err := applyScript.Run(ctx, s.redis,
		[]string{seenKeyPrefix + e.Type + ":" + e.OrderID, statsKeyPrefix + e.ItemID},
		int(seenTTL.Seconds()), counter, units, revenue,
	).Int()
	if err != nil {
		return false, fmt.Errorf("apply event: %w", err)
	}
	return applied == 1, nil
}

// ItemStats returns the counters for itemID. Items without orders report
// zeros.
func (s *Stats) ItemStats(ctx context.Context, itemID string) (*model.ItemStats, error) {
	res := s.redis.HGetAll(ctx, statsKeyPrefix+itemID)
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	stats := model.ItemStats{}
	if err := res.Scan(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode item stats: %w", err)
	}
	stats.ItemID = itemID
	return &stats, nil
}
