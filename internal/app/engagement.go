package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
	"github.com/jsamuelsen/quote-feed/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Engagement write outcomes for metrics.
const (
	outcomeApplied = "applied"
	outcomeNoop    = "noop"
	outcomePartial = "partial"
	outcomeError   = "error"
)

// Engagement keeps likes, saves and like counters consistent across the
// cache and the durable store. The store's idempotent insert and
// delete-if-present decide whether a toggle changed anything; cached
// membership sets and counters only save work and round trips.
type Engagement struct {
	store     ports.EngagementStore
	cache     ports.Cache
	publisher ports.EventPublisher
	ttl       EngagementTTL
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	logger    *slog.Logger
}

// EngagementTTL holds entry lifetimes.
type EngagementTTL struct {
	LikeCounter time.Duration
	Membership  time.Duration
}

// EngagementConfig contains the Engagement dependencies. Cache and
// Publisher may be nil.
type EngagementConfig struct {
	Store     ports.EngagementStore
	Cache     ports.Cache
	Publisher ports.EventPublisher
	TTL       EngagementTTL
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// NewEngagement panics without a store.
func NewEngagement(cfg EngagementConfig) *Engagement {
	if cfg.Store == nil {
		panic("app: Engagement requires an engagement store")
	}

	if cfg.Publisher == nil {
		cfg.Publisher = ports.NopPublisher{}
	}

	if cfg.TTL.LikeCounter <= 0 {
		cfg.TTL.LikeCounter = time.Hour
	}

	if cfg.TTL.Membership <= 0 {
		cfg.TTL.Membership = 24 * time.Hour
	}

	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engagement{
		store:     cfg.Store,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		ttl:       cfg.TTL,
		metrics:   cfg.Metrics,
		tracer:    telemetry.Tracer(),
		now:       domain.Now,
		logger:    cfg.Logger.With(slog.String("component", "app.Engagement")),
	}
}

// ToggleLike likes or unlikes quoteID for userID. Repeating a toggle is a
// successful no-op.
func (e *Engagement) ToggleLike(ctx context.Context, userID, quoteID string, action domain.Action) (domain.EngagementState, error) {
	return e.toggle(ctx, domain.RelationLike, userID, quoteID, action)
}

// ToggleSave saves or unsaves quoteID for userID.
func (e *Engagement) ToggleSave(ctx context.Context, userID, quoteID string, action domain.Action) (domain.EngagementState, error) {
	return e.toggle(ctx, domain.RelationSave, userID, quoteID, action)
}

func (e *Engagement) toggle(ctx context.Context, rel domain.Relation, userID, quoteID string, action domain.Action) (domain.EngagementState, error) {
	if action != domain.ActionAdd && action != domain.ActionRemove {
		return domain.EngagementState{}, domain.NewValidationErrorWithValue("action", "unknown action", action.String())
	}

	mode := cacheModeFor(e.cache)

	ctx, span := e.tracer.Start(ctx, "engagement.toggle", trace.WithAttributes(
		attribute.String("engagement.relation", rel.String()),
		attribute.String("engagement.action", action.String()),
		attribute.String("engagement.path", mode.String()),
		attribute.String("quote.id", quoteID),
	))
	defer span.End()

	var (
		changed bool
		err     error
	)

	if mode == modeCached {
		var handled bool

		changed, handled, err = e.toggleCached(ctx, rel, userID, quoteID, action)
		if !handled {
			mode = modeDirect
			span.SetAttributes(attribute.String("engagement.path", mode.String()))
		}
	}

	if mode == modeDirect {
		changed, err = e.write(ctx, rel, userID, quoteID, action)
	}

	e.metrics.EngagementWrites.WithLabelValues(rel.String(), mode.String(), outcome(changed, err)).Inc()

	if changed {
		e.publish(ctx, rel, userID, quoteID, action)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return domain.EngagementState{}, err
	}

	state := domain.EngagementState{
		QuoteID:  quoteID,
		Relation: rel,
		Active:   action == domain.ActionAdd,
	}

	if rel == domain.RelationLike {
		counts, err := e.GetLikeCounts(ctx, []string{quoteID})
		if err != nil {
			return domain.EngagementState{}, fmt.Errorf("reading like count: %w", err)
		}

		state.LikeCount = counts[quoteID]
	}

	e.log(ctx).InfoContext(ctx, "engagement toggled",
		slog.String("relation", rel.String()),
		slog.String("action", action.String()),
		slog.String("quote_id", quoteID),
		slog.Bool("changed", changed),
		slog.String("path", mode.String()))

	return state, nil
}

// toggleCached runs the cached write protocol:
//
//  1. membership SAdd/SRem; a failure here means nothing was mutated, so
//     handled=false sends the caller down the direct path
//  2. counter adjustment, only when membership changed
//  3. durable write, always
//  4. counter reconciliation against the store's verdict
//
// A counter failure after step 1 still lets the durable write run and is
// then reported as a partial CacheUnavailableError.
func (e *Engagement) toggleCached(ctx context.Context, rel domain.Relation, userID, quoteID string, action domain.Action) (changed, handled bool, err error) {
	logger := e.log(ctx)
	setKey := membershipKey(rel, userID)
	adding := action == domain.ActionAdd

	var memberChanged bool
	if adding {
		memberChanged, err = e.cache.SAdd(ctx, setKey, quoteID, e.ttl.Membership)
	} else {
		memberChanged, err = e.cache.SRem(ctx, setKey, quoteID)
	}

	if err != nil {
		logger.WarnContext(ctx, "cache membership update failed, writing store only",
			slog.String("key", setKey), slog.Any("error", err))

		return false, false, nil
	}

	counted := rel == domain.RelationLike
	counterKey := likeCounterKey(quoteID)

	var (
		counterApplied bool
		counterErr     error
	)

	if counted && memberChanged {
		counterApplied, counterErr = e.adjustCounter(ctx, counterKey, adding)
	}

	changed, err = e.write(ctx, rel, userID, quoteID, action)
	if err != nil {
		if domain.IsNotFound(err) && memberChanged {
			e.undoMembership(ctx, setKey, quoteID, adding)

			if counterApplied {
				e.revertCounter(ctx, counterKey, adding)
			}
		}

		return false, true, err
	}

	if counterErr != nil {
		e.dropCounter(ctx, counterKey)

		return changed, true, domain.NewCacheUnavailableError(rel.String()+" counter", true, counterErr)
	}

	if counted {
		switch {
		case memberChanged && !changed && counterApplied:
			e.revertCounter(ctx, counterKey, adding)
		case !memberChanged && changed:
			logger.DebugContext(ctx, "membership set was stale, store changed",
				slog.String("key", setKey), slog.String("quote_id", quoteID))

			if _, err := e.adjustCounter(ctx, counterKey, adding); err != nil {
				e.dropCounter(ctx, counterKey)
			}
		}
	}

	return changed, true, nil
}

// write is the durable step shared by both paths.
func (e *Engagement) write(ctx context.Context, rel domain.Relation, userID, quoteID string, action domain.Action) (bool, error) {
	var (
		changed bool
		err     error
	)

	if action == domain.ActionAdd {
		changed, err = e.store.AddRelation(ctx, rel, userID, quoteID)
	} else {
		changed, err = e.store.RemoveRelation(ctx, rel, userID, quoteID)
	}

	if err != nil {
		return false, fmt.Errorf("writing %s for quote %s: %w", rel, quoteID, err)
	}

	return changed, nil
}

// adjustCounter reports whether an existing counter was changed. Absent
// counters are left absent.
func (e *Engagement) adjustCounter(ctx context.Context, key string, increment bool) (bool, error) {
	var (
		present bool
		err     error
	)

	if increment {
		_, present, err = e.cache.IncrIfPresent(ctx, key)
	} else {
		_, present, err = e.cache.DecrFloorIfPresent(ctx, key)
	}

	return present, err
}

func (e *Engagement) revertCounter(ctx context.Context, key string, incremented bool) {
	if _, err := e.adjustCounter(ctx, key, !incremented); err != nil {
		e.log(ctx).WarnContext(ctx, "counter revert failed", slog.String("key", key), slog.Any("error", err))
		e.dropCounter(ctx, key)
	}
}

func (e *Engagement) undoMembership(ctx context.Context, key, quoteID string, added bool) {
	var err error
	if added {
		_, err = e.cache.SRem(ctx, key, quoteID)
	} else {
		_, err = e.cache.SAdd(ctx, key, quoteID, e.ttl.Membership)
	}

	if err != nil {
		e.log(ctx).WarnContext(ctx, "membership undo failed", slog.String("key", key), slog.Any("error", err))
	}
}

// dropCounter deletes a counter that may have drifted; the next read seeds it
// from the store.
func (e *Engagement) dropCounter(ctx context.Context, key string) {
	if err := e.cache.Delete(ctx, key); err != nil {
		e.log(ctx).WarnContext(ctx, "counter delete failed", slog.String("key", key), slog.Any("error", err))
	}
}

// GetLikeCounts returns a count for every id. Cached counters are read in
// one batch; misses come from the store and are seeded.
func (e *Engagement) GetLikeCounts(ctx context.Context, quoteIDs []string) (map[string]int64, error) {
	if len(quoteIDs) == 0 {
		return map[string]int64{}, nil
	}

	if cacheModeFor(e.cache) == modeDirect {
		return e.storeLikeCounts(ctx, quoteIDs)
	}

	keys := make([]string, len(quoteIDs))
	for i, id := range quoteIDs {
		keys[i] = likeCounterKey(id)
	}

	cached, err := e.cache.Counters(ctx, keys)
	if err != nil {
		e.metrics.CacheLookups.WithLabelValues(familyLikeCount, telemetry.ResultError).Add(float64(len(keys)))
		e.log(ctx).WarnContext(ctx, "counter read failed, using store", slog.Any("error", err))

		return e.storeLikeCounts(ctx, quoteIDs)
	}

	counts := make(map[string]int64, len(quoteIDs))
	missing := make([]string, 0, len(quoteIDs))

	for i, id := range quoteIDs {
		if n, ok := cached[keys[i]]; ok {
			counts[id] = n
			continue
		}

		missing = append(missing, id)
	}

	e.metrics.CacheLookups.WithLabelValues(familyLikeCount, telemetry.ResultHit).Add(float64(len(quoteIDs) - len(missing)))
	e.metrics.CacheLookups.WithLabelValues(familyLikeCount, telemetry.ResultMiss).Add(float64(len(missing)))

	if len(missing) == 0 {
		return counts, nil
	}

	fromStore, err := e.storeLikeCounts(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, id := range missing {
		n := fromStore[id]
		counts[id] = n

		if _, err := e.cache.SetIfAbsent(ctx, likeCounterKey(id), []byte(strconv.FormatInt(n, 10)), e.ttl.LikeCounter); err != nil {
			e.log(ctx).DebugContext(ctx, "counter seed failed", slog.String("quote_id", id), slog.Any("error", err))
		}
	}

	return counts, nil
}

func (e *Engagement) storeLikeCounts(ctx context.Context, quoteIDs []string) (map[string]int64, error) {
	counts, err := e.store.LikeCounts(ctx, quoteIDs)
	if err != nil {
		return nil, fmt.Errorf("counting likes: %w", err)
	}

	return counts, nil
}

// HasLiked returns the subset of quoteIDs userID has liked, from the store.
func (e *Engagement) HasLiked(ctx context.Context, userID string, quoteIDs []string) (map[string]bool, error) {
	return e.related(ctx, domain.RelationLike, userID, quoteIDs)
}

// HasSaved returns the subset of quoteIDs userID has saved, from the store.
func (e *Engagement) HasSaved(ctx context.Context, userID string, quoteIDs []string) (map[string]bool, error) {
	return e.related(ctx, domain.RelationSave, userID, quoteIDs)
}

func (e *Engagement) related(ctx context.Context, rel domain.Relation, userID string, quoteIDs []string) (map[string]bool, error) {
	if len(quoteIDs) == 0 {
		return map[string]bool{}, nil
	}

	set, err := e.store.FilterRelated(ctx, rel, userID, quoteIDs)
	if err != nil {
		return nil, fmt.Errorf("checking %s state: %w", rel, err)
	}

	return set, nil
}

// LikedQuoteIDs lists userID's liked quotes, most recent first.
func (e *Engagement) LikedQuoteIDs(ctx context.Context, userID string) ([]string, error) {
	return e.relatedIDs(ctx, domain.RelationLike, userID)
}

// SavedQuoteIDs lists userID's saved quotes, most recent first.
func (e *Engagement) SavedQuoteIDs(ctx context.Context, userID string) ([]string, error) {
	return e.relatedIDs(ctx, domain.RelationSave, userID)
}

func (e *Engagement) relatedIDs(ctx context.Context, rel domain.Relation, userID string) ([]string, error) {
	ids, err := e.store.RelatedQuoteIDs(ctx, rel, userID)
	if err != nil {
		return nil, fmt.Errorf("listing %s quotes: %w", rel, err)
	}

	return ids, nil
}

func (e *Engagement) publish(ctx context.Context, rel domain.Relation, userID, quoteID string, action domain.Action) {
	event := EngagementEvent{
		UserID:   userID,
		QuoteID:  quoteID,
		Relation: rel,
		Action:   action,
		At:       e.now(),
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log(ctx).WarnContext(ctx, "engagement event not published",
			slog.String("subject", event.EventType()),
			slog.String("key", event.Key()),
			slog.Any("error", err))
	}
}

func (e *Engagement) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, e.logger)
}

func outcome(changed bool, err error) string {
	switch {
	case domain.IsCacheUnavailable(err):
		return outcomePartial
	case err != nil:
		return outcomeError
	case changed:
		return outcomeApplied
	default:
		return outcomeNoop
	}
}
