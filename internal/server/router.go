package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tasktrack/tasktrack/internal/cache"
	"github.com/tasktrack/tasktrack/internal/handler"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/middleware"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Logger  *slog.Logger
	Version string

	Auth   handler.AuthService
	Tasks  handler.TaskService
	Tokens middleware.TokenValidator

	// DB and Cache back /readyz; either may be nil.
	DB    handler.HealthChecker
	Cache handler.HealthChecker

	Metrics  metrics.Recorder
	Snapshot metrics.Snapshotter

	Limiter          cache.RateLimiter
	RateLimitEnabled bool
	LoginLimit       cache.Limit
	APILimit         cache.Limit

	IsDevelopment      bool
	MaxRequestBodySize int64
	// TrustProxyHeaders enables chi's RealIP so X-Forwarded-For sets the client address.
	TrustProxyHeaders bool
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	bodyLimit := cfg.MaxRequestBodySize
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultSecurityConfig().MaxRequestBodySize
	}

	h := handler.New(cfg.Version)
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Cache, logger)
	metricsHandler := handler.NewMetricsHandler(cfg.Snapshot)
	authHandler := handler.NewAuthHandler(cfg.Auth, logger)
	taskHandler := handler.NewTaskHandler(cfg.Tasks, logger)

	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.MaxBodySize(bodyLimit))

	// Operational endpoints (no auth required)
	r.Get("/", h.Root)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Logger:    logger,
		Limiter:   cfg.Limiter,
		Enabled:   cfg.RateLimitEnabled,
		Bucket:    "login",
		Limit:     cfg.LoginLimit,
		KeyFunc:   middleware.KeyByIP,
		OnLimited: func(*http.Request) { recorder.IncLogin(metrics.LoginRateLimited) },
	})
	apiLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: cfg.Limiter,
		Enabled: cfg.RateLimitEnabled,
		Bucket:  "api",
		Limit:   cfg.APILimit,
		KeyFunc: middleware.KeyBySubject,
	})
	authenticate := middleware.Authenticate(middleware.AuthConfig{
		Logger:  logger,
		Tokens:  cfg.Tokens,
		Metrics: recorder,
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.With(loginLimit).Post("/auth/login", authHandler.Login)
		r.With(loginLimit).Post("/auth/verify", authHandler.Verify)

		// Everything else needs a principal
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(apiLimit)

			r.Get("/auth/me", authHandler.Me)
			r.With(middleware.RequireAdmin).Get("/auth/users", authHandler.ListUsers)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Get("/stats/status", taskHandler.StatusStats)
				r.Get("/stats/workload", taskHandler.Workload)
				r.Get("/{id}", taskHandler.Get)
				r.Patch("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Delete)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
