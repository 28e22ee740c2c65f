// Package app wires repositories and services together. Every dependency is
// resolved lazily through a registry and memoized for the process lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklane/stacklane/internal/auth"
	"github.com/stacklane/stacklane/internal/cache"
	"github.com/stacklane/stacklane/internal/config"
	"github.com/stacklane/stacklane/internal/events"
	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/registry"
	"github.com/stacklane/stacklane/internal/repository"
	"github.com/stacklane/stacklane/internal/repository/memory"
	"github.com/stacklane/stacklane/internal/repository/postgres"
	"github.com/stacklane/stacklane/internal/service"
	"github.com/stacklane/stacklane/internal/webhook"
)

// Feature names used as registry keys.
const (
	FeaturePostgres     = "postgres"
	FeatureRedis        = "redis"
	FeatureMemory       = "memory"
	FeatureKeyring      = "auth.keyring"
	FeatureItemRepo     = "items.repository"
	FeatureOrderRepo    = "orders.repository"
	FeatureItemService  = "items.service"
	FeatureOrderService = "orders.service"
	FeaturePublisher    = "events.publisher"
	FeatureStats        = "events.stats"
	FeatureWorker       = "events.worker"
	FeatureNotifier     = "webhooks.notifier"
	FeatureWebhooks     = "webhooks.worker"
)

// connectTimeout bounds backend construction, which outlives the request
// that triggered it.
const connectTimeout = 10 * time.Second

var (
	// ErrCacheDisabled is returned by Cache when no REDIS_URL is configured.
	ErrCacheDisabled = errors.New("redis cache is not configured")

	// ErrEventsDisabled is returned by the event accessors when events are
	// switched off or Redis is not configured.
	ErrEventsDisabled = errors.New("order events are not enabled")

	// ErrWebhooksDisabled is returned by the webhook accessors when no
	// WEBHOOK_URL is configured or events are inactive.
	ErrWebhooksDisabled = errors.New("order webhooks are not enabled")
)

// Container is the dependency-injection context handed to the router.
type Container struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	reg      *registry.Registry
}

// New creates a Container. Nothing is constructed until first use.
func New(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) *Container {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	reg := registry.New()
	reg.OnConstruct(func(feature string) {
		recorder.IncDependencyResolved(feature)
		logger.Debug("dependency constructed", "feature", feature)
	})
	return &Container{cfg: cfg, logger: logger, recorder: recorder, reg: reg}
}

// Registry exposes the underlying registry.
func (c *Container) Registry() *registry.Registry {
	return c.reg
}

// Database resolves the shared PostgreSQL pool.
func (c *Container) Database(ctx context.Context) (*postgres.DB, error) {
	return registry.Resolve(c.reg, FeaturePostgres, func() (*postgres.DB, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), connectTimeout)
		defer cancel()
		db, err := postgres.New(ctx, c.cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns: c.cfg.DBMaxConns,
			MinConns: c.cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		c.logger.Info("connected to database")
		return db, nil
	})
}

// Cache resolves the Redis client, or returns ErrCacheDisabled.
func (c *Container) Cache(ctx context.Context) (*cache.Cache, error) {
	if c.cfg.RedisURL == "" {
		return nil, ErrCacheDisabled
	}
	return registry.Resolve(c.reg, FeatureRedis, func() (*cache.Cache, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), connectTimeout)
		defer cancel()
		cc, err := cache.New(ctx, c.cfg.RedisURL, cache.Options{
			PoolSize:     c.cfg.RedisPoolSize,
			MinIdleConns: c.cfg.RedisMinIdleConns,
		})
		if err != nil {
			return nil, err
		}
		c.logger.Info("connected to Redis")
		return cc, nil
	})
}

// Keyring resolves the configured API keys.
func (c *Container) Keyring() (*auth.Keyring, error) {
	return registry.Resolve(c.reg, FeatureKeyring, func() (*auth.Keyring, error) {
		entries, err := auth.ParseKeyEntries(c.cfg.APIKeys)
		if err != nil {
			return nil, err
		}
		return auth.NewKeyring(entries)
	})
}

// Publisher resolves the order event publisher.
func (c *Container) Publisher(ctx context.Context) (*events.StreamPublisher, error) {
	if !c.cfg.EventsActive() {
		return nil, ErrEventsDisabled
	}
	return registry.Resolve(c.reg, FeaturePublisher, func() (*events.StreamPublisher, error) {
		cc, err := c.Cache(ctx)
		if err != nil {
			return nil, err
		}
		return events.NewStreamPublisher(cc.Client(), c.logger, c.recorder), nil
	})
}

// Stats resolves the item statistics projection.
func (c *Container) Stats(ctx context.Context) (*events.Stats, error) {
	if !c.cfg.EventsActive() {
		return nil, ErrEventsDisabled
	}
	return registry.Resolve(c.reg, FeatureStats, func() (*events.Stats, error) {
		cc, err := c.Cache(ctx)
		if err != nil {
			return nil, err
		}
		return events.NewStats(cc.Client()), nil
	})
}

// Worker resolves the consumer that folds order events into statistics.
// The caller runs it and owns its shutdown.
func (c *Container) Worker(ctx context.Context) (*events.Worker, error) {
	if !c.cfg.EventsActive() || !c.cfg.EventsWorkerEnabled {
		return nil, ErrEventsDisabled
	}
	return registry.Resolve(c.reg, FeatureWorker, func() (*events.Worker, error) {
		stats, err := c.Stats(ctx)
		if err != nil {
			return nil, err
		}
		cc, err := c.Cache(ctx)
		if err != nil {
			return nil, err
		}
		w := events.NewWorker(cc.Client(), events.StatsGroup, stats, c.logger, events.NewConsumerID(), c.recorder)
		w.SetBatchSize(c.cfg.EventsBatchSize)
		w.SetBlockTimeout(c.cfg.EventsBlockTimeout)
		return w, nil
	})
}

// Notifier resolves the order webhook notifier.
func (c *Container) Notifier() (*webhook.Notifier, error) {
	if !c.cfg.WebhooksActive() {
		return nil, ErrWebhooksDisabled
	}
	return registry.Resolve(c.reg, FeatureNotifier, func() (*webhook.Notifier, error) {
		return webhook.NewNotifier(webhook.Options{
			URL:          c.cfg.WebhookURL,
			Secret:       c.cfg.WebhookSecret,
			AllowPrivate: c.cfg.WebhookAllowPrivate,
		}, c.logger, c.recorder)
	})
}

// WebhookWorker resolves the consumer that delivers order webhooks. It
// joins the stream at its tail, so events published before the group
// existed are not delivered.
func (c *Container) WebhookWorker(ctx context.Context) (*events.Worker, error) {
	if !c.cfg.WebhooksActive() {
		return nil, ErrWebhooksDisabled
	}
	return registry.Resolve(c.reg, FeatureWebhooks, func() (*events.Worker, error) {
		notifier, err := c.Notifier()
		if err != nil {
			return nil, err
		}
		cc, err := c.Cache(ctx)
		if err != nil {
			return nil, err
		}
		w := events.NewWorker(cc.Client(), webhook.Group, notifier, c.logger, events.NewConsumerID(), c.recorder)
		w.SetStartID("$")
		w.SetBatchSize(c.cfg.EventsBatchSize)
		w.SetBlockTimeout(c.cfg.EventsBlockTimeout)
		return w, nil
	})
}

// memoryStores is the linked in-memory backend.
type memoryStores struct {
	items  *memory.ItemStore
	orders *memory.OrderStore
}

// inMemory resolves the in-memory stores. Both repositories must come from
// one pair so item deletes see the orders that reference them.
func (c *Container) inMemory() (memoryStores, error) {
	return registry.Resolve(c.reg, FeatureMemory, func() (memoryStores, error) {
		items, orders := memory.NewStores()
		return memoryStores{items: items, orders: orders}, nil
	})
}

// ItemRepository resolves the item store for the configured backend.
func (c *Container) ItemRepository(ctx context.Context) (repository.ItemRepository, error) {
	return registry.Resolve(c.reg, FeatureItemRepo, func() (repository.ItemRepository, error) {
		var items repository.ItemRepository
		if c.cfg.UsesPostgres() {
			db, err := c.Database(ctx)
			if err != nil {
				return nil, err
			}
			items = db.Items()
		} else {
			mem, err := c.inMemory()
			if err != nil {
				return nil, err
			}
			items = mem.items
		}

		if c.cfg.RedisURL == "" {
			return items, nil
		}
		cc, err := c.Cache(ctx)
		if err != nil {
			return nil, err
		}
		return cache.NewCachedItems(items, cc, c.cfg.ItemCacheTTL, c.logger, c.recorder), nil
	})
}

// OrderRepository resolves the order store for the configured backend.
func (c *Container) OrderRepository(ctx context.Context) (repository.OrderRepository, error) {
	return registry.Resolve(c.reg, FeatureOrderRepo, func() (repository.OrderRepository, error) {
		if !c.cfg.UsesPostgres() {
			mem, err := c.inMemory()
			if err != nil {
				return nil, err
			}
			return mem.orders, nil
		}
		db, err := c.Database(ctx)
		if err != nil {
			return nil, err
		}
		return db.Orders(), nil
	})
}

// ItemService resolves the item service.
func (c *Container) ItemService(ctx context.Context) (*service.ItemService, error) {
	return registry.Resolve(c.reg, FeatureItemService, func() (*service.ItemService, error) {
		items, orders, err := c.repositories(ctx)
		if err != nil {
			return nil, err
		}
		var opts []service.ItemOption
		if c.cfg.EventsActive() {
			stats, err := c.Stats(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, service.WithStats(stats))
		}
		return service.NewItemService(items, orders, c.recorder, opts...), nil
	})
}

// OrderService resolves the order service.
func (c *Container) OrderService(ctx context.Context) (*service.OrderService, error) {
	return registry.Resolve(c.reg, FeatureOrderService, func() (*service.OrderService, error) {
		items, orders, err := c.repositories(ctx)
		if err != nil {
			return nil, err
		}
		var opts []service.OrderOption
		if c.cfg.EventsActive() {
			pub, err := c.Publisher(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, service.WithEvents(pub))
		}
		return service.NewOrderService(items, orders, c.recorder, opts...), nil
	})
}

func (c *Container) repositories(ctx context.Context) (repository.ItemRepository, repository.OrderRepository, error) {
	items, err := c.ItemRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	orders, err := c.OrderRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	return items, orders, nil
}

// Warm resolves every dependency so configuration errors surface at startup.
func (c *Container) Warm(ctx context.Context) error {
	if c.cfg.AuthEnabled {
		if _, err := c.Keyring(); err != nil {
			return fmt.Errorf("load API keys: %w", err)
		}
	}
	if _, err := c.ItemService(ctx); err != nil {
		return fmt.Errorf("resolve item service: %w", err)
	}
	if _, err := c.OrderService(ctx); err != nil {
		return fmt.Errorf("resolve order service: %w", err)
	}
	if c.cfg.WebhooksActive() {
		if _, err := c.Notifier(); err != nil {
			return fmt.Errorf("resolve webhook notifier: %w", err)
		}
	}
	return nil
}

// Check pings each configured backend. The result maps a backend name to
// its ping error (nil when healthy).
func (c *Container) Check(ctx context.Context) map[string]error {
	results := make(map[string]error)
	if c.cfg.UsesPostgres() {
		db, err := c.Database(ctx)
		if err == nil {
			err = db.Ping(ctx)
		}
		results[FeaturePostgres] = err
	}
	if c.cfg.RedisURL != "" {
		cc, err := c.Cache(ctx)
		if err == nil {
			err = cc.Ping(ctx)
		}
		results[FeatureRedis] = err
	}
	return results
}

// Close releases every constructed dependency in reverse order.
func (c *Container) Close(ctx context.Context) error {
	return c.reg.Close(ctx)
}
