package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/adapters/cache/memory"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
	"github.com/jsamuelsen/quote-feed/internal/testutil"
)

const userHeader = "X-User-ID"

// apiFixture wires the handlers to real services over the in-memory store
// and cache.
type apiFixture struct {
	store  *testutil.FakeStore
	cache  *memory.Cache
	router *gin.Engine
}

func newAPIFixture(t *testing.T, quotes ...domain.Quote) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewFakeStore()
	store.Seed(quotes...)
	cache := memory.New()

	feedCache := app.NewFeedCache(app.FeedCacheConfig{Store: store, Cache: cache, Logger: logger})
	engagement := app.NewEngagement(app.EngagementConfig{Store: store, Cache: cache, Logger: logger})
	assembler := app.NewFeedAssembler(app.FeedAssemblerConfig{Store: store, Engagement: engagement, Logger: logger})
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{Store: store, Invalidator: feedCache, Logger: logger})

	auth := &config.AuthConfig{SubjectHeader: userHeader}
	limits := Limits{Default: 20, Max: 100}

	router := gin.New()
	api := router.Group("/api/v1")
	NewQuoteHandler(feedCache, quoteService, limits).RegisterRoutes(api)
	NewFeedHandler(assembler, engagement, auth, limits).RegisterRoutes(api)
	NewDashboardHandler(quoteService, assembler, auth).RegisterRoutes(api)

	return &apiFixture{store: store, cache: cache, router: router}
}

// do sends a request as user ("" for anonymous) and returns the recorder.
func (f *apiFixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}

	if user != "" {
		r.Header.Set(userHeader, user)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())

	return v
}

type quoteJSON struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Author    *string `json:"author"`
	CreatedBy *string `json:"createdBy"`
	LikeCount int64   `json:"likeCount"`
	Liked     *bool   `json:"liked"`
	Saved     *bool   `json:"saved"`
}

type pageJSON struct {
	Items      []quoteJSON `json:"items"`
	NextCursor string      `json:"nextCursor"`
	NextOffset *int        `json:"nextOffset"`
	HasMore    bool        `json:"hasMore"`
}

type errorJSON struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func ids(items []quoteJSON) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}

	return out
}
