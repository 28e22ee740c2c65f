// Package router assembles the HTTP surface: global middleware, probes,
// metrics and the versioned API.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/stacklane/stacklane/internal/api"
	"github.com/stacklane/stacklane/internal/config"
	"github.com/stacklane/stacklane/internal/handler"
	"github.com/stacklane/stacklane/internal/metrics"
	"github.com/stacklane/stacklane/internal/middleware"
)

// authMinDuration pads rejected API key attempts.
const authMinDuration = 25 * time.Millisecond

// Services resolves per-request services and probes backends.
// *app.Container implements it.
type Services interface {
	handler.ItemServiceResolver
	handler.OrderServiceResolver
	handler.Checker
}

// Options configures New.
type Options struct {
	Name     string
	Config   *config.Config
	Logger   *slog.Logger
	Services Services
	Recorder metrics.Recorder

	// Metrics serves /metrics. Nil leaves the route unmounted.
	Metrics http.Handler
	// Keys authenticates API keys when Config.AuthEnabled is set.
	Keys middleware.Authenticator
	// Limiter backs rate limiting. Nil disables it.
	Limiter middleware.Limiter
}

// New builds the router.
func New(opts Options) *chi.Mux {
	cfg := opts.Config
	logger := opts.Logger
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.Name == "" {
		opts.Name = "stacklane"
	}

	h := handler.New(opts.Name)
	healthHandler := handler.NewHealthHandler(opts.Services)
	itemHandler := handler.NewItemHandler(opts.Services, logger)
	orderHandler := handler.NewOrderHandler(opts.Services, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Instrument(recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Probes and docs (no auth)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/openapi.yaml", api.Handler)
	r.Get("/", h.Info)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	authCfg := middleware.AuthConfig{
		Logger:      logger,
		Enabled:     cfg.AuthEnabled,
		Keys:        opts.Keys,
		MinDuration: authMinDuration,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: opts.Limiter,
		Enabled: cfg.RateLimitEnabled,
		KeyRPM:  cfg.RateLimitKeyRPM,
		IPRPS:   cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimit(rateLimitCfg))

		r.Route("/items", itemHandler.Routes)
		r.Route("/orders", orderHandler.Routes)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
