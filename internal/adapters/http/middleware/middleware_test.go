package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestIDMiddleware covers both id headers: reuse of an inbound id, minting a
// UUID when absent, and propagation to gin, the request context and the
// response.
func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	kinds := []struct {
		name       string
		header     string
		middleware gin.HandlerFunc
		fromGin    func(*gin.Context) string
		fromCtx    func(context.Context) string
	}{
		{"request id", HeaderRequestID, RequestID(), GetRequestID, RequestIDFromContext},
		{"correlation id", HeaderCorrelationID, CorrelationID(), GetCorrelationID, CorrelationIDFromContext},
	}

	for _, kind := range kinds {
		for _, inbound := range []string{"", "gw-7f3a"} {
			t.Run(fmt.Sprintf("%s inbound=%q", kind.name, inbound), func(t *testing.T) {
				t.Parallel()

				var ginID, ctxID string

				router := gin.New()
				router.Use(kind.middleware)
				router.GET("/api/v1/quotes/random", func(c *gin.Context) {
					ginID = kind.fromGin(c)
					ctxID = kind.fromCtx(c.Request.Context())
					c.Status(http.StatusOK)
				})

				req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/random", nil)
				if inbound != "" {
					req.Header.Set(kind.header, inbound)
				}

				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				echoed := w.Header().Get(kind.header)
				assert.Equal(t, echoed, ginID)
				assert.Equal(t, echoed, ctxID)

				if inbound != "" {
					assert.Equal(t, inbound, echoed)
					return
				}

				_, err := uuid.Parse(echoed)
				assert.NoError(t, err)
			})
		}
	}
}

func TestMustGetIDs(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
	assert.Equal(t, "unknown", MustGetRequestID(c))
	assert.Equal(t, "unknown", MustGetCorrelationID(c))

	c.Set(ContextKeyRequestID, "req-1")
	c.Set(ContextKeyCorrelationID, "corr-1")
	c.Set("not-a-string", 42)

	assert.Equal(t, "req-1", MustGetRequestID(c))
	assert.Equal(t, "corr-1", MustGetCorrelationID(c))
	assert.Empty(t, getIDFromContext(c, "not-a-string"))
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

// TestLogging tests the Logging middleware.
func TestLogging(t *testing.T) {
	t.Parallel()

	serve := func(logger *slog.Logger, route, target string, status int, skip ...string) {
		router := gin.New()
		router.Use(Logging(logger, skip...))
		router.GET(route, func(c *gin.Context) {
			c.Status(status)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	t.Run("logs the route template", func(t *testing.T) {
		t.Parallel()

		logger, buf := captureLogger()
		serve(logger, "/api/v1/quotes/:id", "/api/v1/quotes/0192?x=1", http.StatusOK)

		out := buf.String()
		assert.Contains(t, out, `"msg":"request completed"`)
		assert.Contains(t, out, `"route":"/api/v1/quotes/:id"`)
		assert.Contains(t, out, `"status":200`)
		assert.Contains(t, out, `"level":"INFO"`)
		assert.NotContains(t, out, "0192")
	})

	t.Run("unmatched path falls back to raw path", func(t *testing.T) {
		t.Parallel()

		logger, buf := captureLogger()
		serve(logger, "/known", "/unknown", http.StatusOK)

		assert.Contains(t, buf.String(), `"route":"/unknown"`)
		assert.Contains(t, buf.String(), `"status":404`)
	})

	t.Run("skips probe paths and configured paths", func(t *testing.T) {
		t.Parallel()

		logger, buf := captureLogger()
		serve(logger, "/-/ready", "/-/ready", http.StatusOK)
		serve(logger, "/metrics", "/metrics", http.StatusOK, "/metrics")

		assert.Empty(t, buf.String())
	})

	levels := []struct {
		status int
		level  string
	}{
		{http.StatusCreated, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range levels {
		t.Run(fmt.Sprintf("status %d logs at %s", tt.status, tt.level), func(t *testing.T) {
			t.Parallel()

			logger, buf := captureLogger()
			serve(logger, "/api/v1/feed", "/api/v1/feed", tt.status)

			assert.Contains(t, buf.String(), fmt.Sprintf(`"level":%q`, tt.level))
		})
	}

	t.Run("uses the request logger when one is set", func(t *testing.T) {
		t.Parallel()

		fallback, fallbackBuf := captureLogger()
		scoped, scopedBuf := captureLogger()

		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), scoped))
			c.Next()
		})
		router.Use(Logging(fallback))
		router.POST("/api/v1/quotes/:id/like", func(c *gin.Context) {
			setClaims(c, &Claims{Subject: "u1"})
			c.Status(http.StatusOK)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/quotes/q1/like", nil))

		assert.Empty(t, fallbackBuf.String())
		assert.Contains(t, scopedBuf.String(), `"user_id":"u1"`)
	})
}

// TestRecovery tests the Recovery middleware.
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("normal request passes through", func(t *testing.T) {
		t.Parallel()

		logger, buf := captureLogger()

		router := gin.New()
		router.Use(Recovery(logger))
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, buf.String())
	})

	t.Run("panicking handler returns 500 envelope", func(t *testing.T) {
		t.Parallel()

		logger, buf := captureLogger()

		router := gin.New()
		router.Use(Recovery(logger))
		router.GET("/test", func(c *gin.Context) {
			panic("something went wrong")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
		assert.NotContains(t, w.Body.String(), "something went wrong")
		assert.Contains(t, buf.String(), "panic recovered")
		assert.Contains(t, buf.String(), "something went wrong")
	})

	t.Run("panic after write keeps the sent status", func(t *testing.T) {
		t.Parallel()

		logger, _ := captureLogger()

		router := gin.New()
		router.Use(Recovery(logger))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			panic("late")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})
}

// TestRecoveryWithWriter tests the RecoveryWithWriter middleware.
func TestRecoveryWithWriter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("calls stack handler on panic", func(t *testing.T) {
		t.Parallel()

		var capturedErr any
		var capturedStack []byte

		stackHandler := func(err any, stack []byte) {
			capturedErr = err
			capturedStack = stack
		}

		router := gin.New()
		router.Use(RecoveryWithWriter(logger, stackHandler))
		router.GET("/test", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "test panic", capturedErr)
		assert.NotEmpty(t, capturedStack)
		assert.Contains(t, string(capturedStack), "panic")
	})
}

// TestTimeout tests the Timeout middleware.
func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("sets context deadline", func(t *testing.T) {
		t.Parallel()

		var hasDeadline bool

		router := gin.New()
		router.Use(Timeout(5 * time.Second))
		router.GET("/test", func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, hasDeadline, "context should have deadline")
	})

	t.Run("skips configured paths and zero timeout", func(t *testing.T) {
		t.Parallel()

		var skipped, disabled bool

		router := gin.New()
		router.POST("/uploads", Timeout(time.Second, "/uploads"), func(c *gin.Context) {
			_, skipped = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})
		router.GET("/off", Timeout(0), func(c *gin.Context) {
			_, disabled = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/uploads", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/off", nil))

		assert.False(t, skipped, "skipped path should not have deadline")
		assert.False(t, disabled, "zero timeout should not set a deadline")
	})

	t.Run("answers 504 when the handler gives up silently", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			<-c.Request.Context().Done()
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"TIMEOUT"`)
	})

	t.Run("leaves a written response alone", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			<-c.Request.Context().Done()
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "TIMEOUT")
	})
}
