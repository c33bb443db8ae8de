// Package main is the entrypoint for the Tasktrack API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/cache"
	"github.com/tasktrack/tasktrack/internal/config"
	"github.com/tasktrack/tasktrack/internal/metrics"
	"github.com/tasktrack/tasktrack/internal/query"
	"github.com/tasktrack/tasktrack/internal/repository"
	"github.com/tasktrack/tasktrack/internal/server"
	"github.com/tasktrack/tasktrack/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const startupTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	repo, err := repository.New(startCtx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errStartup
	}
	logger.Info("connected to database")

	if cfg.RunMigrations {
		if err := repo.Migrate(startCtx); err != nil {
			repo.Close()
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			return errStartup
		}
		logger.Info("migrations applied")
	}

	cacheClient, err := cache.New(startCtx, cfg.RedisURL, cache.Options{})
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errStartup
	}
	logger.Info("connected to Redis")

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTTTL, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return err
	}

	recorder := metrics.NewInMemory()
	hasher := auth.NewHasher(auth.DefaultParams)
	builder := query.NewBuilder(cfg.DefaultPageSize, cfg.MaxPageSize)

	authService := service.NewAuthService(repo, hasher, tokens, cfg.StoreTimeout, recorder, logger)
	taskService := service.NewTaskService(repo, builder, cfg.StoreTimeout, recorder, logger)

	router := server.NewRouter(server.RouterConfig{
		Logger:             logger,
		Version:            version,
		Auth:               authService,
		Tasks:              taskService,
		Tokens:             tokens,
		DB:                 repo,
		Cache:              cacheClient,
		Metrics:            recorder,
		Snapshot:           recorder,
		Limiter:            cache.NewFallbackLimiter(cacheClient, cache.NewLocalLimiter(), logger),
		RateLimitEnabled:   cfg.RateLimitEnabled,
		LoginLimit:         cache.Limit{PerMinute: cfg.RateLimitLoginPerMinute, Burst: cfg.RateLimitLoginBurst},
		APILimit:           cache.Limit{PerMinute: cfg.RateLimitAPIPerMinute, Burst: cfg.RateLimitAPIBurst},
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
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
