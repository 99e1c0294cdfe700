// Package main is the entry point for the quote feed service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-feed/internal/adapters/cache/memory"
	"github.com/jsamuelsen/quote-feed/internal/adapters/cache/redis"
	natsevents "github.com/jsamuelsen/quote-feed/internal/adapters/events/nats"
	"github.com/jsamuelsen/quote-feed/internal/adapters/http"
	"github.com/jsamuelsen/quote-feed/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-feed/internal/adapters/store/postgres"
	"github.com/jsamuelsen/quote-feed/internal/adapters/store/sqlite"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
	"github.com/jsamuelsen/quote-feed/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

// cache is a cache adapter with its connection lifecycle.
type cache interface {
	ports.Cache
	ports.HealthChecker
	Open(ctx context.Context) error
	io.Closer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Driver),
		slog.String("cache", cfg.Cache.Driver),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// 5. Create health registry
	healthRegistry := ports.NewHealthRegistry()

	// 6. Open the durable store (required)
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	defer closeQuietly(logger, "store", st)

	if err := healthRegistry.Register(st); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	// 7. Open the cache (optional; a failed ping leaves the breaker in charge)
	c := newCache(cfg.Cache, metrics, logger)
	if c != nil {
		if err := c.Open(ctx); err != nil {
			logger.Warn("cache not reachable at startup, serving from store", slog.Any("error", err))
		}

		defer closeQuietly(logger, "cache", c)

		if err := healthRegistry.Register(c); err != nil {
			return fmt.Errorf("registering cache health check: %w", err)
		}
	}

	// 8. Engagement events (optional)
	var publisher ports.EventPublisher = ports.NopPublisher{}

	if cfg.Events.Enabled {
		p := natsevents.New(natsevents.Config{
			URL:            cfg.Events.URL,
			Stream:         cfg.Events.Stream,
			Subjects:       []string{app.SubjectLikes, app.SubjectSaves},
			PublishTimeout: cfg.Events.PublishTimeout,
		}, logger)

		if err := p.Open(ctx); err != nil {
			logger.Warn("event stream not reachable, engagement events disabled until restart", slog.Any("error", err))
		}

		defer closeQuietly(logger, "events", p)

		if err := healthRegistry.Register(p); err != nil {
			return fmt.Errorf("registering events health check: %w", err)
		}

		publisher = p
	}

	// 9. Application services
	var portCache ports.Cache
	if c != nil {
		portCache = c
	}

	feedCache := app.NewFeedCache(app.FeedCacheConfig{
		Store: st,
		Cache: portCache,
		TTL: app.FeedCacheTTL{
			RandomQuote: cfg.Cache.TTL.RandomQuote,
			AuthorList:  cfg.Cache.TTL.AuthorList,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	engagement := app.NewEngagement(app.EngagementConfig{
		Store:     st,
		Cache:     portCache,
		Publisher: publisher,
		TTL: app.EngagementTTL{
			LikeCounter: cfg.Cache.TTL.LikeCounter,
			Membership:  cfg.Cache.TTL.Membership,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	assembler := app.NewFeedAssembler(app.FeedAssemblerConfig{
		Store:      st,
		Engagement: engagement,
		Logger:     logger,
	})

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       st,
		Invalidator: feedCache,
		Logger:      logger,
	})

	// 10. Create handlers
	limits := handlers.Limits{Default: cfg.Feed.DefaultLimit, Max: cfg.Feed.MaxLimit}
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)

	// 11. Create HTTP server and router
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:           logger,
		AuthConfig:       &cfg.Auth,
		AppConfig:        &cfg.App,
		HealthHandler:    handlers.NewHealthHandler(healthRegistry, buildInfo),
		QuoteHandler:     handlers.NewQuoteHandler(feedCache, quoteService, limits),
		FeedHandler:      handlers.NewFeedHandler(assembler, engagement, &cfg.Auth, limits),
		DashboardHandler: handlers.NewDashboardHandler(quoteService, assembler, &cfg.Auth),
		Timeout:          cfg.Server.RequestTimeout,
	})

	// 12. Start server (non-blocking)
	serverErr := server.Start()

	// 13. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (ports.Store, error) {
	var st ports.Store

	switch cfg.Driver {
	case "postgres":
		st = postgres.New(postgres.Config{
			DSN:            cfg.DSN,
			MaxConns:       cfg.MaxConns,
			ConnectTimeout: cfg.ConnectTimeout,
		})
	case "sqlite":
		s, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}

		st = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	openCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := st.Open(openCtx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}

	return st, nil
}

// newCache returns nil for the "none" driver.
func newCache(cfg config.CacheConfig, metrics *telemetry.Metrics, logger *slog.Logger) cache {
	switch cfg.Driver {
	case "redis":
		return redis.New(redis.Config{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Breaker: redis.BreakerConfig{
				MaxFailures:   cfg.Breaker.MaxFailures,
				Timeout:       cfg.Breaker.Timeout,
				HalfOpenLimit: cfg.Breaker.HalfOpenLimit,
			},
		}, metrics, logger)
	case "memory":
		return memory.New()
	default:
		return nil
	}
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", slog.String("component", name), slog.Any("error", err))
	}
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight; stores close via defers.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
