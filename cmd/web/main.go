package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/config"
	"supermart-dashboard/internal/forecast"
	"supermart-dashboard/internal/middleware"
	"supermart-dashboard/internal/observability"
	"supermart-dashboard/internal/server"
	"supermart-dashboard/internal/services"
)

const warmTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"data_path", cfg.Data.Path,
		"tracing", cfg.Tracing.Enabled,
	)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	users, closeUsers, err := openUserStore(ctx, cfg.Auth, logger)
	if err != nil {
		shutdownTracing(ctx)
		return err
	}

	analytics := services.NewAnalytics(pipelineOptions(cfg), logger)
	warm(ctx, analytics, logger)

	sessions := auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.CookieName, cfg.Auth.SecureCookie)
	srv := server.NewServer(analytics, auth.NewService(users), sessions, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(srv, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)
	gracefulServer.RegisterShutdownHook("user store", closeUsers)

	logger.Info("starting graceful server")
	return gracefulServer.ListenAndServe()
}

func newHandler(srv http.Handler, cfg *config.Config, logger *slog.Logger) http.Handler {
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.Metrics(observability.DefaultMetrics()),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.CSRF(cfg.Security, logger),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func pipelineOptions(cfg *config.Config) services.Options {
	return services.Options{
		Source:        cfg.PipelineOptions(),
		CacheDir:      cfg.Data.CacheDir,
		SeasonLength:  cfg.Forecast.SeasonLength,
		SeasonalShort: cfg.Forecast.SeasonalShort,
		SeasonalLong:  cfg.Forecast.SeasonalLong,
		SegmentSteps:  cfg.Forecast.SegmentSteps,
		HoldoutMonths: cfg.Forecast.HoldoutMonths,
		Booster: forecast.Booster{
			Rounds:       cfg.Forecast.Rounds,
			MaxDepth:     cfg.Forecast.MaxDepth,
			LearningRate: cfg.Forecast.LearningRate,
			MinLeaf:      1,
		},
	}
}

// openUserStore picks Redis when a URL is configured. The returned closer
// is registered as a shutdown hook.
func openUserStore(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (auth.UserStore, func(context.Context) error, error) {
	if cfg.RedisURL == "" {
		logger.Warn("no redis url configured, users are kept in memory")
		return auth.NewMemoryStore(), func(context.Context) error { return nil }, nil
	}

	store, err := auth.OpenRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open user store: %w", err)
	}
	logger.Info("using redis user store")
	return store, func(context.Context) error { return store.Close() }, nil
}

// warm builds the first bundle so the first page view is fast. A failure
// is logged; pages report it until the data is fixed.
func warm(ctx context.Context, analytics *services.Analytics, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	start := time.Now()
	b, err := analytics.Bundle(ctx)
	if err != nil {
		logger.Warn("initial pipeline run failed", "error", err)
		return
	}
	logger.Info("sales data loaded",
		"records", len(b.Transactions),
		"dropped", b.Dropped,
		"duration", time.Since(start),
	)
}
