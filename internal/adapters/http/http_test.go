package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/adapters/cache/memory"
	"github.com/jsamuelsen/quote-feed/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
	"github.com/jsamuelsen/quote-feed/internal/ports"
	"github.com/jsamuelsen/quote-feed/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestServerNew tests creating a server from configuration.
func TestServerNew(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.engine)
	assert.NotNil(t, srv.httpServer)
	assert.Equal(t, cfg, srv.config)
	assert.Equal(t, logger, srv.logger)
}

// TestServerEngine tests getting the underlying Gin engine.
func TestServerEngine(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "localhost",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
	logger := discardLogger()

	srv := New(cfg, logger)
	engine := srv.Engine()

	require.NotNil(t, engine)
	assert.IsType(t, &gin.Engine{}, engine)
}

// TestServerConfig tests getting the server configuration.
func TestServerConfig(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "0.0.0.0",
		Port:           3000,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 2 << 20,
	}
	logger := discardLogger()

	srv := New(cfg, logger)
	returnedCfg := srv.Config()

	assert.Equal(t, cfg, returnedCfg)
	assert.Equal(t, 3000, returnedCfg.Port)
	assert.Equal(t, "0.0.0.0", returnedCfg.Host)
}

// TestServerAddr tests the server address formatting.
func TestServerAddr(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		port         int
		expectedAddr string
	}{
		{
			name:         "localhost with port 8080",
			host:         "localhost",
			port:         8080,
			expectedAddr: "localhost:8080",
		},
		{
			name:         "0.0.0.0 with port 3000",
			host:         "0.0.0.0",
			port:         3000,
			expectedAddr: "0.0.0.0:3000",
		},
		{
			name:         "127.0.0.1 with port 0",
			host:         "127.0.0.1",
			port:         0,
			expectedAddr: "127.0.0.1:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.ServerConfig{
				Host:           tt.host,
				Port:           tt.port,
				ReadTimeout:    5 * time.Second,
				WriteTimeout:   10 * time.Second,
				IdleTimeout:    30 * time.Second,
				MaxRequestSize: 1 << 20,
			}
			logger := discardLogger()

			srv := New(cfg, logger)
			addr := srv.Addr()

			assert.Equal(t, tt.expectedAddr, addr)
		})
	}
}

// TestServerStartShutdown tests starting and stopping the server.
func TestServerStartShutdown(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0, // Use port 0 for dynamic port allocation
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
	logger := discardLogger()

	srv := New(cfg, logger)

	// Add a simple route for testing
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	errCh := srv.Start()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Verify no immediate errors
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server start error: %v", err)
		}
	default:
		// No error, server is running
	}

	// Shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	require.NoError(t, err)

	// Verify error channel is closed
	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}

// TestServerShutdownWithContext tests graceful shutdown with context.
func TestServerShutdownWithContext(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
	logger := discardLogger()

	srv := New(cfg, logger)
	errCh := srv.Start()

	time.Sleep(50 * time.Millisecond)

	// Shutdown with a context
	ctx := context.Background()
	err := srv.Shutdown(ctx)
	require.NoError(t, err)

	// Wait for error channel to close
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to shutdown")
	}
}

// TestNewDefaultRouterConfig tests creating a default router configuration.
func TestNewDefaultRouterConfig(t *testing.T) {
	logger := discardLogger()
	appCfg := &config.AppConfig{Name: "quote-feed", Environment: "test", Version: "1.0.0"}
	authCfg := &config.AuthConfig{SubjectHeader: "X-User-ID"}
	healthHandler := handlers.NewHealthHandler(nil, handlers.BuildInfo{})

	cfg := NewDefaultRouterConfig(logger, appCfg, authCfg, healthHandler)

	assert.Equal(t, logger, cfg.Logger)
	assert.Equal(t, appCfg, cfg.AppConfig)
	assert.Equal(t, authCfg, cfg.AuthConfig)
	assert.Equal(t, healthHandler, cfg.HealthHandler)
	assert.Equal(t, DefaultRequestTimeout, cfg.Timeout)
	assert.Nil(t, cfg.QuoteHandler)
	assert.Nil(t, cfg.FeedHandler)
	assert.Nil(t, cfg.DashboardHandler)
}

// TestSetupMinimalRouter tests setting up a minimal router with health endpoints.
func TestSetupMinimalRouter(t *testing.T) {
	engine := gin.New()
	healthHandler := handlers.NewHealthHandler(nil, handlers.BuildInfo{Version: "1.0.0"})

	SetupMinimalRouter(engine, discardLogger(), healthHandler)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	require.NotPanics(t, func() {
		SetupMinimalRouter(gin.New(), discardLogger(), nil)
	})
}

// newTestRouter wires the full middleware chain and API handlers over the
// in-memory store and cache.
func newTestRouter(t *testing.T, timeout time.Duration) (*gin.Engine, *testutil.FakeStore) {
	t.Helper()

	logger := discardLogger()
	store := testutil.NewFakeStore()
	store.Seed(testutil.FixtureQuote(1, "Seneca", ""))
	cache := memory.New()

	feedCache := app.NewFeedCache(app.FeedCacheConfig{Store: store, Cache: cache, Logger: logger})
	engagement := app.NewEngagement(app.EngagementConfig{Store: store, Cache: cache, Logger: logger})
	assembler := app.NewFeedAssembler(app.FeedAssemblerConfig{Store: store, Engagement: engagement, Logger: logger})
	quotes := app.NewQuoteService(app.QuoteServiceConfig{Store: store, Invalidator: feedCache, Logger: logger})

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(store))
	require.NoError(t, registry.Register(cache))

	authCfg := &config.AuthConfig{SubjectHeader: "X-User-ID"}
	limits := handlers.Limits{Default: 20, Max: 100}

	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:           logger,
		AuthConfig:       authCfg,
		AppConfig:        &config.AppConfig{Name: "quote-feed", Environment: "test", Version: "1.0.0"},
		HealthHandler:    handlers.NewHealthHandler(registry, handlers.BuildInfo{Version: "1.0.0"}),
		QuoteHandler:     handlers.NewQuoteHandler(feedCache, quotes, limits),
		FeedHandler:      handlers.NewFeedHandler(assembler, engagement, authCfg, limits),
		DashboardHandler: handlers.NewDashboardHandler(quotes, assembler, authCfg),
		Timeout:          timeout,
	})

	return engine, store
}

// TestSetupRouter tests the full router with middleware and API routes.
func TestSetupRouter(t *testing.T) {
	engine, store := newTestRouter(t, 30*time.Second)

	t.Run("routes registered", func(t *testing.T) {
		paths := make(map[string]bool)
		for _, r := range engine.Routes() {
			paths[r.Method+" "+r.Path] = true
		}

		for _, want := range []string{
			"GET /-/live",
			"GET /-/ready",
			"GET /api/v1/quotes",
			"GET /api/v1/quotes/random",
			"GET /api/v1/quotes/:id",
			"GET /api/v1/feed",
			"GET /api/v1/feed/engagement",
			"POST /api/v1/feed/likes/:id",
			"DELETE /api/v1/feed/saved/:id",
			"POST /api/v1/dashboard/quotes",
			"GET /api/v1/dashboard/liked",
		} {
			assert.True(t, paths[want], want)
		}
	})

	t.Run("request id echoed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/random", nil)
		req.Header.Set("X-Request-ID", "req-123")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("like through the chain", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/feed/likes/"+testutil.QuoteID(1), nil)
		req.Header.Set("X-User-ID", "u1")
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"quoteId":"`+testutil.QuoteID(1)+`","liked":true,"likeCount":1}`, w.Body.String())
		assert.Equal(t, int64(1), store.LikeCount(testutil.QuoteID(1)))
	})

	t.Run("unauthenticated toggle", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/feed/saved/"+testutil.QuoteID(1), nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("readiness", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"store"`)
	})
}

// TestSetupRouter_ReadinessDegraded tests that a cache outage keeps the
// service ready while a store outage does not.
func TestSetupRouter_ReadinessDegraded(t *testing.T) {
	engine, store := newTestRouter(t, 0)

	store.Fail("Check", context.DeadlineExceeded)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestSetupRouterWithNilHandlers tests router setup with nothing but config.
func TestSetupRouterWithNilHandlers(t *testing.T) {
	cfg := RouterConfig{
		Logger:    discardLogger(),
		AppConfig: &config.AppConfig{Name: "quote-feed"},
		Timeout:   30 * time.Second,
	}

	require.NotPanics(t, func() {
		SetupRouter(gin.New(), cfg)
	})
}

// TestMaxBodySizeMiddleware tests the max request body size middleware.
func TestMaxBodySizeMiddleware(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 100,
	}

	srv := New(cfg, discardLogger())

	srv.Engine().POST("/test", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": len(body)})
	})

	tests := []struct {
		name       string
		size       int
		wantStatus int
	}{
		{name: "under limit", size: 50, wantStatus: http.StatusOK},
		{name: "over limit", size: 200, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", tt.size)))
			srv.Engine().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestServer_UnknownRoutesUseErrorEnvelope(t *testing.T) {
	srv := New(&config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1024,
	}, discardLogger())

	srv.Engine().GET("/api/v1/quotes/random", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"unknown path", http.MethodGet, "/api/v1/nope", http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodDelete, "/api/v1/quotes/random", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
		})
	}
}
