// Package ports defines the contracts the application core depends on.
// Adapters implement them; the core never imports an adapter.
//
// Conventions:
//   - context first, always
//   - domain types in and out, never driver types
//   - failures are domain errors (domain.ErrNotFound, ...) or wrapped driver errors
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// QuoteStore is durable quote storage.
type QuoteStore interface {
	// GetQuote returns domain.ErrNotFound if the quote does not exist.
	GetQuote(ctx context.Context, id string) (domain.Quote, error)

	// ListQuotes returns up to filter.Limit quotes ordered newest first
	// (created_at DESC, id DESC), starting strictly after filter.Cursor.
	// Callers ask for one extra row to detect a following page.
	ListQuotes(ctx context.Context, filter domain.ListFilter) ([]domain.Quote, error)

	// RandomQuote returns domain.ErrNotFound only when no quotes exist.
	RandomQuote(ctx context.Context) (domain.Quote, error)

	// ListQuotesByIDs returns the quotes that exist, in no particular order.
	ListQuotesByIDs(ctx context.Context, ids []string) ([]domain.Quote, error)

	// ListQuotesByCreator returns a user's own quotes, newest first.
	ListQuotesByCreator(ctx context.Context, userID string) ([]domain.Quote, error)

	// ListPopular orders by durable like count DESC, created_at DESC, id DESC.
	ListPopular(ctx context.Context, offset, limit int) ([]domain.Quote, error)

	CreateQuote(ctx context.Context, q domain.Quote) error

	// UpdateQuote and DeleteQuote return domain.ErrNotFound when the quote
	// is missing or not owned by owner.
	UpdateQuote(ctx context.Context, owner, id string, patch domain.QuotePatch, at time.Time) (domain.Quote, error)
	DeleteQuote(ctx context.Context, owner, id string) error
}

// EngagementStore is the durable record of likes and saves. Its idempotent
// insert and delete-if-present decide whether a toggle changed anything.
type EngagementStore interface {
	// AddRelation inserts the (user, quote) pair if absent. inserted is false
	// when it already existed. Returns domain.ErrNotFound for an unknown quote.
	AddRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (inserted bool, err error)

	// RemoveRelation deletes the pair if present.
	RemoveRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (removed bool, err error)

	// RelatedQuoteIDs lists the user's related quotes, most recent relation first.
	RelatedQuoteIDs(ctx context.Context, rel domain.Relation, userID string) ([]string, error)

	// FilterRelated returns the subset of quoteIDs the user is related to.
	FilterRelated(ctx context.Context, rel domain.Relation, userID string, quoteIDs []string) (map[string]bool, error)

	// LikeCounts has an entry for every requested id, zero when unliked.
	LikeCounts(ctx context.Context, quoteIDs []string) (map[string]int64, error)
}

// Store is the full durable store an adapter provides.
type Store interface {
	QuoteStore
	EngagementStore
	HealthChecker

	// Open connects and creates the schema if needed.
	Open(ctx context.Context) error
	Close() error
}
