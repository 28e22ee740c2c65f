package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/model"
	"github.com/stacklane/stacklane/internal/repository"
)

// Cache key prefixes and TTLs.
const (
	itemKeyPrefix     = "item:"
	negCacheKeySuffix = ":neg"

	// DefaultItemTTL is the TTL for cached item data.
	DefaultItemTTL = 10 * time.Minute

	// NegativeCacheTTL is the TTL for "item does not exist" entries.
	NegativeCacheTTL = 30 * time.Second
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

func itemKey(id string) string {
	return itemKeyPrefix + id
}

// GetItem retrieves an item from cache.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetItem(ctx context.Context, id string) (*model.Item, error) {
	res := c.client.HGetAll(ctx, itemKey(id))
	fields, err := res.Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	var cached model.CachedItem
	if err := res.Scan(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached item: %w", err)
	}
	return cached.ToItem()
}

// SetItem stores an item in cache and clears any negative entry.
func (c *Cache) SetItem(ctx context.Context, item *model.Item, ttl time.Duration) error {
	key := itemKey(item.ID)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, item.ToCachedItem())
	pipe.Expire(ctx, key, ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache item: %w", err)
	}
	return nil
}

// DeleteItem removes an item and its negative entry from cache.
func (c *Cache) DeleteItem(ctx context.Context, id string) error {
	key := itemKey(id)
	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if an item ID is known not to exist.
func (c *Cache) IsNegativelyCached(ctx context.Context, id string) (bool, error) {
	exists, err := c.client.Exists(ctx, itemKey(id)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks an item ID as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, id string) error {
	if err := c.client.SetEx(ctx, itemKey(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// ItemCache is the subset of Cache used by CachedItems.
type ItemCache interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	SetItem(ctx context.Context, item *model.Item, ttl time.Duration) error
	DeleteItem(ctx context.Context, id string) error
	IsNegativelyCached(ctx context.Context, id string) (bool, error)
	SetNegativeCache(ctx context.Context, id string) error
}

var _ repository.ItemRepository = (*CachedItems)(nil)

// CachedItems is a read-through cache in front of an ItemRepository.
// Cache failures never fail a request; the primary store stays authoritative.
type CachedItems struct {
	next    repository.ItemRepository
	cache   ItemCache
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCachedItems wraps next with cache.
func NewCachedItems(next repository.ItemRepository, cache ItemCache, ttl time.Duration, logger *slog.Logger, recorder metrics.Recorder) *CachedItems {
	if ttl <= 0 {
		ttl = DefaultItemTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CachedItems{next: next, cache: cache, ttl: ttl, logger: logger, metrics: recorder}
}

// Get serves from cache when possible.
func (c *CachedItems) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := c.cache.GetItem(ctx, id)
	if err == nil {
		c.metrics.IncItemCacheHit()
		return item, nil
	}
	c.metrics.IncItemCacheMiss()
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("item cache read failed", "error", err, "item_id", id)
	}

	if neg, err := c.cache.IsNegativelyCached(ctx, id); err == nil && neg {
		return nil, repository.ErrNotFound
	}

	item, err = c.next.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.warn(c.cache.SetNegativeCache(ctx, id), id)
		}
		return nil, err
	}

	c.warn(c.cache.SetItem(ctx, item, c.ttl), id)
	return item, nil
}

// List bypasses the cache.
func (c *CachedItems) List(ctx context.Context, page repository.Page) ([]*model.Item, error) {
	return c.next.List(ctx, page)
}

// Count bypasses the cache.
func (c *CachedItems) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

// Create writes through and clears any negative entry for the ID.
func (c *CachedItems) Create(ctx context.Context, id string, in model.ItemCreate) (*model.Item, error) {
	item, err := c.next.Create(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.warn(c.cache.SetItem(ctx, item, c.ttl), id)
	return item, nil
}

// Update writes through and invalidates.
func (c *CachedItems) Update(ctx context.Context, id string, in model.ItemUpdate) (*model.Item, error) {
	item, err := c.next.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return item, nil
}

// Delete writes through and invalidates.
func (c *CachedItems) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// ReserveStock writes through and invalidates.
func (c *CachedItems) ReserveStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	item, err := c.next.ReserveStock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return item, nil
}

// ReleaseStock writes through and invalidates.
func (c *CachedItems) ReleaseStock(ctx context.Context, id string, qty int) (*model.Item, error) {
	item, err := c.next.ReleaseStock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return item, nil
}

// invalidate drops the cached copy after a write. Snapshots returned by
// concurrent writes are unordered and are never cached.
func (c *CachedItems) invalidate(ctx context.Context, id string) {
	c.warn(c.cache.DeleteItem(context.WithoutCancel(ctx), id), id)
}

func (c *CachedItems) warn(err error, id string) {
	if err != nil {
		c.logger.Warn("item cache write failed", "error", err, "item_id", id)
	}
}
