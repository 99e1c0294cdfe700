// Package app holds the use cases: cached feed reads, engagement writes,
// feed assembly and the quote dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
	"github.com/jsamuelsen/quote-feed/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Key families for lookup metrics.
const (
	familyRandom     = "random"
	familyAuthorList = "author_list"
	familyLikeCount  = "like_count"
)

// FeedCache serves the read-mostly quote queries with cache-aside.
// Every cache failure is logged and treated as a miss.
type FeedCache struct {
	store   ports.QuoteStore
	cache   ports.Cache
	ttl     FeedCacheTTL
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// FeedCacheTTL holds entry lifetimes.
type FeedCacheTTL struct {
	RandomQuote time.Duration
	AuthorList  time.Duration
}

// FeedCacheConfig contains the FeedCache dependencies. Cache may be nil.
type FeedCacheConfig struct {
	Store   ports.QuoteStore
	Cache   ports.Cache
	TTL     FeedCacheTTL
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewFeedCache panics without a store.
func NewFeedCache(cfg FeedCacheConfig) *FeedCache {
	if cfg.Store == nil {
		panic("app: FeedCache requires a quote store")
	}

	if cfg.TTL.RandomQuote <= 0 {
		cfg.TTL.RandomQuote = 60 * time.Second
	}

	if cfg.TTL.AuthorList <= 0 {
		cfg.TTL.AuthorList = 300 * time.Second
	}

	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &FeedCache{
		store:   cfg.Store,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With(slog.String("component", "app.FeedCache")),
	}
}

// GetRandomQuote returns the cached random quote, refreshing it from the
// store on a miss. NotFound only when there are no quotes at all.
func (f *FeedCache) GetRandomQuote(ctx context.Context) (domain.Quote, error) {
	mode := cacheModeFor(f.cache)

	if mode == modeCached {
		if raw, ok := f.lookup(ctx, familyRandom, randomQuoteKey); ok {
			q, err := decodeQuote(raw)
			if err == nil {
				return q, nil
			}

			f.log(ctx).WarnContext(ctx, "discarding undecodable cache entry",
				slog.String("key", randomQuoteKey), slog.Any("error", err))
		}
	}

	q, err := f.store.RandomQuote(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("loading random quote: %w", err)
	}

	if mode == modeCached {
		raw, err := encodeQuote(q)
		if err == nil {
			f.populate(ctx, randomQuoteKey, raw, f.ttl.RandomQuote)
		}
	}

	return q, nil
}

// ListQuotes returns one newest-first page. Author-filtered pages are
// cached; an author with no quotes is NotFound rather than an empty page.
func (f *FeedCache) ListQuotes(ctx context.Context, filter domain.ListFilter) (domain.QuotePage, error) {
	if filter.Limit < 1 {
		return domain.QuotePage{}, domain.NewValidationErrorWithValue("limit", "must be positive", filter.Limit)
	}

	if filter.Author == nil {
		return f.pageFromStore(ctx, filter)
	}

	mode := cacheModeFor(f.cache)
	key := authorListKey(*filter.Author, filter.Cursor, filter.Limit)

	if mode == modeCached {
		if raw, ok := f.lookup(ctx, familyAuthorList, key); ok {
			page, err := decodePage(raw)
			if err == nil && len(page.Items) > 0 {
				return page, nil
			}

			f.log(ctx).WarnContext(ctx, "discarding unusable cache entry",
				slog.String("key", key), slog.Any("error", err))
		}
	}

	page, err := f.pageFromStore(ctx, filter)
	if err != nil {
		return domain.QuotePage{}, err
	}

	if len(page.Items) == 0 {
		return domain.QuotePage{}, domain.NewNotFoundError("quotes for author", "")
	}

	if mode == modeCached {
		raw, err := encodePage(page)
		if err == nil {
			f.populate(ctx, key, raw, f.ttl.AuthorList)
		}
	}

	return page, nil
}

// Invalidate drops entries that may still show quoteID after an edit or
// delete. Author listings are left to expire.
func (f *FeedCache) Invalidate(ctx context.Context, quoteID string) {
	if f.cache == nil {
		return
	}

	if err := f.cache.Delete(ctx, randomQuoteKey, likeCounterKey(quoteID)); err != nil {
		f.log(ctx).WarnContext(ctx, "cache invalidation failed",
			slog.String("quote_id", quoteID), slog.Any("error", err))
	}
}

func (f *FeedCache) pageFromStore(ctx context.Context, filter domain.ListFilter) (domain.QuotePage, error) {
	query := filter
	query.Limit = filter.Limit + 1

	rows, err := f.store.ListQuotes(ctx, query)
	if err != nil {
		return domain.QuotePage{}, fmt.Errorf("listing quotes: %w", err)
	}

	items, more := trimPage(rows, filter.Limit)
	page := domain.QuotePage{Items: items}

	if more {
		next := items[len(items)-1].ID
		page.NextCursor = &next
	}

	return page, nil
}

// lookup reads key and records the result. ok is false on miss or error.
func (f *FeedCache) lookup(ctx context.Context, family, key string) ([]byte, bool) {
	raw, err := f.cache.Get(ctx, key)

	switch {
	case err == nil:
		f.metrics.CacheLookups.WithLabelValues(family, telemetry.ResultHit).Inc()
		return raw, true
	case errors.Is(err, ports.ErrCacheMiss):
		f.metrics.CacheLookups.WithLabelValues(family, telemetry.ResultMiss).Inc()
	default:
		f.metrics.CacheLookups.WithLabelValues(family, telemetry.ResultError).Inc()
		f.log(ctx).WarnContext(ctx, "cache read failed, using store",
			slog.String("key", key), slog.Any("error", err))
	}

	return nil, false
}

func (f *FeedCache) populate(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := f.cache.Set(ctx, key, raw, ttl); err != nil {
		f.log(ctx).WarnContext(ctx, "cache populate failed",
			slog.String("key", key), slog.Any("error", err))
	}
}

func (f *FeedCache) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, f.logger)
}
