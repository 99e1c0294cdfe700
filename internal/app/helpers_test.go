package app

import (
	"io"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// newQuote builds a quote created n minutes after baseTime. An empty author
// leaves it unattributed.
func newQuote(id, author string, n int) domain.Quote {
	q := domain.Quote{
		ID:        id,
		Text:      "quote " + id,
		CreatedAt: baseTime.Add(time.Duration(n) * time.Minute),
	}

	if author != "" {
		q.Author = &author
	}

	return q
}

func ownedQuote(id, owner string, n int) domain.Quote {
	q := newQuote(id, "", n)
	q.CreatedBy = &owner

	return q
}

func ptr[T any](v T) *T {
	return &v
}

func ids(quotes []domain.Quote) []string {
	out := make([]string, len(quotes))
	for i, q := range quotes {
		out[i] = q.ID
	}

	return out
}

func itemIDs(items []domain.FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Quote.ID
	}

	return out
}
