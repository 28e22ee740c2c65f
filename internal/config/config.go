// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// defaultCredentials marks the local docker-compose database login.
const defaultCredentials = "postgres:postgres@"

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`
	Debug   bool   `env:"DEBUG" envDefault:"false"`

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBAutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	// Cache (Redis). Optional; enables the item cache and rate limiting.
	// Zero pool sizes keep the URL's value or the client default.
	RedisURL          string        `env:"REDIS_URL"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE"`
	RedisMinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS"`
	ItemCacheTTL      time.Duration `env:"ITEM_CACHE_TTL" envDefault:"10m"`

	// Order events and item statistics. Both require REDIS_URL.
	EventsEnabled       bool          `env:"EVENTS_ENABLED" envDefault:"true"`
	EventsWorkerEnabled bool          `env:"EVENTS_WORKER_ENABLED" envDefault:"true"`
	EventsBatchSize     int           `env:"EVENTS_BATCH_SIZE" envDefault:"100"`
	EventsBlockTimeout  time.Duration `env:"EVENTS_BLOCK_TIMEOUT" envDefault:"5s"`

	// Order webhooks. Delivery starts when WEBHOOK_URL is set and events
	// are active.
	WebhookURL          string `env:"WEBHOOK_URL"`
	WebhookSecret       string `env:"WEBHOOK_SECRET"`
	WebhookAllowPrivate bool   `env:"WEBHOOK_ALLOW_PRIVATE" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"40"`
	RateLimitKeyRPM  int  `env:"RATE_LIMIT_KEY_RPM" envDefault:"600"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Authentication
	AuthEnabled bool   `env:"AUTH_ENABLED" envDefault:"false"`
	APIKeys     string `env:"API_KEYS"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsTest returns true if running under tests.
func (c *Config) IsTest() bool {
	return c.AppEnv == EnvTest
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// UsesPostgres reports whether repositories are backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.StorageBackend == StoragePostgres
}

// EventsActive reports whether order events are published and item
// statistics are served.
func (c *Config) EventsActive() bool {
	return c.EventsEnabled && c.RedisURL != ""
}

// WebhooksActive reports whether order webhooks are delivered.
func (c *Config) WebhooksActive() bool {
	return c.EventsActive() && c.WebhookURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks enumerations and environment-specific rules.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{EnvDevelopment, EnvTest, EnvStaging, EnvProduction}, c.AppEnv) {
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, test, staging, production", c.AppEnv))
	}
	if !slices.Contains([]string{StorageMemory, StoragePostgres}, c.StorageBackend) {
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not one of memory, postgres", c.StorageBackend))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if !slices.Contains([]string{"json", "text"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.LogFormat))
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d is out of range", c.AppPort))
	}
	if c.UsesPostgres() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS %d exceeds DB_MAX_CONNS %d", c.DBMinConns, c.DBMaxConns))
	}
	if c.RedisPoolSize < 0 || c.RedisMinIdleConns < 0 {
		errs = append(errs, errors.New("REDIS_POOL_SIZE and REDIS_MIN_IDLE_CONNS must not be negative"))
	}
	if c.RedisPoolSize > 0 && c.RedisMinIdleConns > c.RedisPoolSize {
		errs = append(errs, fmt.Errorf("REDIS_MIN_IDLE_CONNS %d exceeds REDIS_POOL_SIZE %d", c.RedisMinIdleConns, c.RedisPoolSize))
	}
	if c.EventsBatchSize <= 0 {
		errs = append(errs, errors.New("EVENTS_BATCH_SIZE must be positive"))
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.AuthEnabled && strings.TrimSpace(c.APIKeys) == "" {
		errs = append(errs, errors.New("API_KEYS is required when AUTH_ENABLED=true"))
	}

	if c.IsProduction() {
		if strings.Contains(c.DatabaseURL, defaultCredentials) {
			errs = append(errs, errors.New("DATABASE_URL uses default credentials in production"))
		}
		if !c.AuthEnabled {
			errs = append(errs, errors.New("AUTH_ENABLED must be true in production"))
		}
		if c.Debug {
			errs = append(errs, errors.New("DEBUG must be false in production"))
		}
		if c.WebhookAllowPrivate {
			errs = append(errs, errors.New("WEBHOOK_ALLOW_PRIVATE must be false in production"))
		}
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
