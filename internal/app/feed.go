package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
	"github.com/jsamuelsen/quote-feed/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// FeedAssembler joins quote pages with like counts and the requester's
// liked/saved flags. Pages always come from the store; counts may come from
// cached counters. An empty requester is anonymous.
type FeedAssembler struct {
	store      ports.QuoteStore
	engagement *Engagement
	tracer     trace.Tracer
	logger     *slog.Logger
}

// FeedAssemblerConfig contains the FeedAssembler dependencies.
type FeedAssemblerConfig struct {
	Store      ports.QuoteStore
	Engagement *Engagement
	Logger     *slog.Logger
}

// NewFeedAssembler panics without a store or engagement engine.
func NewFeedAssembler(cfg FeedAssemblerConfig) *FeedAssembler {
	if cfg.Store == nil || cfg.Engagement == nil {
		panic("app: FeedAssembler requires a quote store and an engagement engine")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &FeedAssembler{
		store:      cfg.Store,
		engagement: cfg.Engagement,
		tracer:     telemetry.Tracer(),
		logger:     cfg.Logger.With(slog.String("component", "app.FeedAssembler")),
	}
}

// GetFeedNewest pages newest first by cursor.
func (a *FeedAssembler) GetFeedNewest(ctx context.Context, requester, cursor string, limit int) (domain.FeedPage, error) {
	if limit < 1 {
		return domain.FeedPage{}, domain.NewValidationErrorWithValue("limit", "must be positive", limit)
	}

	ctx, span := a.tracer.Start(ctx, "feed.newest", trace.WithAttributes(
		attribute.Int("feed.limit", limit),
		attribute.Bool("feed.cursor", cursor != ""),
	))
	defer span.End()

	rows, err := a.store.ListQuotes(ctx, domain.ListFilter{Cursor: cursor, Limit: limit + 1})
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("listing newest quotes: %w", err)
	}

	quotes, more := trimPage(rows, limit)

	items, err := a.decorate(ctx, requester, quotes)
	if err != nil {
		return domain.FeedPage{}, err
	}

	page := domain.FeedPage{Items: items}
	if more {
		next := quotes[len(quotes)-1].ID
		page.NextCursor = &next
	}

	return page, nil
}

// GetFeedPopular pages by offset, ordered by durable like count with
// created_at and id as tiebreaks.
func (a *FeedAssembler) GetFeedPopular(ctx context.Context, requester string, offset, limit int) (domain.FeedPage, error) {
	if limit < 1 {
		return domain.FeedPage{}, domain.NewValidationErrorWithValue("limit", "must be positive", limit)
	}

	if offset < 0 {
		return domain.FeedPage{}, domain.NewValidationErrorWithValue("offset", "must not be negative", offset)
	}

	ctx, span := a.tracer.Start(ctx, "feed.popular", trace.WithAttributes(
		attribute.Int("feed.limit", limit),
		attribute.Int("feed.offset", offset),
	))
	defer span.End()

	rows, err := a.store.ListPopular(ctx, offset, limit+1)
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("listing popular quotes: %w", err)
	}

	quotes, more := trimPage(rows, limit)

	items, err := a.decorate(ctx, requester, quotes)
	if err != nil {
		return domain.FeedPage{}, err
	}

	page := domain.FeedPage{Items: items}
	if more {
		next := offset + limit
		page.NextOffset = &next
	}

	return page, nil
}

// LikedFeed lists the quotes userID liked, most recent like first.
func (a *FeedAssembler) LikedFeed(ctx context.Context, userID string) ([]domain.FeedItem, error) {
	ids, err := a.engagement.LikedQuoteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	return a.byIDs(ctx, userID, ids)
}

// SavedFeed lists the quotes userID saved, most recent save first.
func (a *FeedAssembler) SavedFeed(ctx context.Context, userID string) ([]domain.FeedItem, error) {
	ids, err := a.engagement.SavedQuoteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	return a.byIDs(ctx, userID, ids)
}

// GetEngagement returns engagement state for arbitrary quote ids.
func (a *FeedAssembler) GetEngagement(ctx context.Context, requester string, quoteIDs []string) (map[string]domain.Engagement, error) {
	counts, liked, saved, err := a.lookup(ctx, requester, quoteIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Engagement, len(quoteIDs))
	for _, id := range quoteIDs {
		out[id] = domain.Engagement{
			LikeCount: counts[id],
			Liked:     flag(liked, id, requester),
			Saved:     flag(saved, id, requester),
		}
	}

	return out, nil
}

// byIDs loads quotes in the order of ids, dropping ids whose quote is gone.
func (a *FeedAssembler) byIDs(ctx context.Context, requester string, ids []string) ([]domain.FeedItem, error) {
	if len(ids) == 0 {
		return []domain.FeedItem{}, nil
	}

	found, err := a.store.ListQuotesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading quotes by id: %w", err)
	}

	byID := make(map[string]domain.Quote, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	quotes := make([]domain.Quote, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			quotes = append(quotes, q)
		}
	}

	if dropped := len(ids) - len(quotes); dropped > 0 {
		logging.FromContextOr(ctx, a.logger).DebugContext(ctx, "skipping engagement rows for deleted quotes",
			slog.Int("dropped", dropped))
	}

	return a.decorate(ctx, requester, quotes)
}

func (a *FeedAssembler) decorate(ctx context.Context, requester string, quotes []domain.Quote) ([]domain.FeedItem, error) {
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}

	counts, liked, saved, err := a.lookup(ctx, requester, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.FeedItem, len(quotes))
	for i, q := range quotes {
		items[i] = domain.FeedItem{
			Quote:     q,
			LikeCount: counts[q.ID],
			Liked:     flag(liked, q.ID, requester),
			Saved:     flag(saved, q.ID, requester),
		}
	}

	return items, nil
}

// lookup fans out the three per-page lookups. The liked and saved lookups
// are skipped for anonymous requesters.
func (a *FeedAssembler) lookup(ctx context.Context, requester string, ids []string) (map[string]int64, map[string]bool, map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil, nil, nil
	}

	var (
		counts       map[string]int64
		liked, saved map[string]bool
	)

	lookups := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			counts, err = a.engagement.GetLikeCounts(ctx, ids)
			return err
		},
	}

	if requester != "" {
		lookups = append(lookups,
			func(ctx context.Context) (err error) {
				liked, err = a.engagement.HasLiked(ctx, requester, ids)
				return err
			},
			func(ctx context.Context) (err error) {
				saved, err = a.engagement.HasSaved(ctx, requester, ids)
				return err
			},
		)
	}

	if err := fanOut(ctx, lookups...); err != nil {
		return nil, nil, nil, fmt.Errorf("loading engagement: %w", err)
	}

	return counts, liked, saved, nil
}

// flag is nil for anonymous requesters so "unknown" stays distinct from false.
func flag(set map[string]bool, id, requester string) *bool {
	if requester == "" {
		return nil
	}

	v := set[id]

	return &v
}
