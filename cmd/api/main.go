// Package main is the entrypoint for the Stacklane API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/stacklane/stacklane/internal/app"
	"github.com/stacklane/stacklane/internal/cache"
	"github.com/stacklane/stacklane/internal/config"
	"github.com/stacklane/stacklane/internal/events"
	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/repository/postgres"
	"github.com/stacklane/stacklane/internal/router"
	"github.com/stacklane/stacklane/internal/server"
)

const serviceName = "stacklane"

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := initLogger(cfg)
	recorder := metrics.NewPrometheus(serviceName)
	secrets := []string{cfg.DatabaseURL, cfg.RedisURL}

	if cfg.UsesPostgres() && cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to migrate database",
				slog.String("error", sanitizeError(err, secrets...)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return errors.New("migration failed")
		}
	}

	container := app.New(cfg, logger, recorder)
	if err := container.Warm(ctx); err != nil {
		logger.Error("failed to resolve dependencies",
			slog.String("error", sanitizeError(err, secrets...)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		_ = container.Close(ctx)
		return errors.New("dependency resolution failed")
	}

	opts := router.Options{
		Name:     serviceName,
		Config:   cfg,
		Logger:   logger,
		Services: container,
		Recorder: recorder,
		Metrics:  recorder.Handler(),
	}
	if cfg.AuthEnabled {
		keys, err := container.Keyring()
		if err != nil {
			_ = container.Close(ctx)
			return err
		}
		logger.Info("api key authentication enabled", "keys", keys.Len())
		opts.Keys = keys
	}
	if cfg.RateLimitEnabled {
		if cc, err := container.Cache(ctx); err == nil {
			opts.Limiter = cc
		} else {
			logger.Warn("rate limiting is per process", "reason", sanitizeError(err, secrets...))
			opts.Limiter = cache.NewLocalLimiter()
		}
	}

	srv := server.New(router.New(opts), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("container", container.Close)

	// Hooks run in reverse, so workers stop before Redis is closed.
	if worker, err := container.Worker(ctx); err == nil {
		startWorker(ctx, srv, "events.worker", worker, logger, secrets)
	} else if cfg.EventsEnabled {
		logger.Warn("events worker disabled", "reason", sanitizeError(err, secrets...))
	}
	if worker, err := container.WebhookWorker(ctx); err == nil {
		startWorker(ctx, srv, "webhooks.worker", worker, logger, secrets)
	} else if cfg.WebhookURL != "" {
		logger.Warn("webhook delivery disabled", "reason", sanitizeError(err, secrets...))
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", cfg.StorageBackend,
		"cache", cfg.RedisURL != "",
		"events", cfg.EventsActive(),
		"webhooks", cfg.WebhooksActive(),
	)

	return srv.Run(ctx)
}

func startWorker(ctx context.Context, srv *server.Server, name string, worker *events.Worker, logger *slog.Logger, secrets []string) {
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("worker stopped", "worker", name, "error", sanitizeError(err, secrets...))
		}
	}()
	srv.OnShutdown(name, worker.Shutdown)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.LogLevel),
		AddSource: cfg.Debug,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", serviceName, "env", cfg.AppEnv)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
