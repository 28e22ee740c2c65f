// Package cache provides the Redis access layer: a read-through item cache
// and token-bucket rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool defaults applied when Options leaves a field zero.
const (
	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
	DefaultPoolTimeout  = 4 * time.Second
	DefaultConnIdleTime = 5 * time.Minute
)

// Options tunes the Redis connection pool. Values set in the URL query
// (pool_size, min_idle_conns, ...) win over the defaults but not over
// non-zero fields here.
type Options struct {
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
}

// Cache wraps the shared Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and pings it.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	applyPoolOptions(ro, opts)

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func applyPoolOptions(ro *redis.Options, opts Options) {
	switch {
	case opts.PoolSize > 0:
		ro.PoolSize = opts.PoolSize
	case ro.PoolSize == 0:
		ro.PoolSize = DefaultPoolSize
	}
	switch {
	case opts.MinIdleConns > 0:
		ro.MinIdleConns = opts.MinIdleConns
	case ro.MinIdleConns == 0:
		ro.MinIdleConns = DefaultMinIdleConns
	}
	if ro.MinIdleConns > ro.PoolSize {
		ro.MinIdleConns = ro.PoolSize
	}
	switch {
	case opts.PoolTimeout > 0:
		ro.PoolTimeout = opts.PoolTimeout
	case ro.PoolTimeout == 0:
		ro.PoolTimeout = DefaultPoolTimeout
	}
	if ro.ConnMaxIdleTime == 0 {
		ro.ConnMaxIdleTime = DefaultConnIdleTime
	}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the client to the event stream packages.
func (c *Cache) Client() *redis.Client {
	return c.client
}
