package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Invalidator drops cached reads that may show a changed quote.
type Invalidator interface {
	Invalidate(ctx context.Context, quoteID string)
}

// QuoteService is the owner-scoped quote dashboard.
type QuoteService struct {
	store       ports.QuoteStore
	invalidator Invalidator
	logger      *slog.Logger
}

// QuoteServiceConfig contains the QuoteService dependencies.
type QuoteServiceConfig struct {
	Store       ports.QuoteStore
	Invalidator Invalidator
	Logger      *slog.Logger
}

// NewQuoteService panics without a store.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app: QuoteService requires a quote store")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &QuoteService{
		store:       cfg.Store,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger.With(slog.String("component", "app.QuoteService")),
	}
}

// GetQuote returns any quote by id.
func (s *QuoteService) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("getting quote: %w", err)
	}

	return q, nil
}

// ListMine returns the caller's own quotes, newest first.
func (s *QuoteService) ListMine(ctx context.Context, userID string) ([]domain.Quote, error) {
	quotes, err := s.store.ListQuotesByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing own quotes: %w", err)
	}

	return quotes, nil
}

// Create stores a new quote owned by userID.
func (s *QuoteService) Create(ctx context.Context, userID, text string, author *string) (domain.Quote, error) {
	author = normalizeAuthor(author)

	if err := domain.ValidateQuoteText(text); err != nil {
		return domain.Quote{}, err
	}

	if err := domain.ValidateAuthor(author); err != nil {
		return domain.Quote{}, err
	}

	id, err := domain.NewQuoteID()
	if err != nil {
		return domain.Quote{}, err
	}

	owner := userID
	q := domain.Quote{
		ID:        id,
		Text:      text,
		Author:    author,
		CreatedBy: &owner,
		CreatedAt: domain.Now(),
	}

	if err := s.store.CreateQuote(ctx, q); err != nil {
		return domain.Quote{}, fmt.Errorf("creating quote: %w", err)
	}

	s.log(ctx).InfoContext(ctx, "quote created", slog.String("quote_id", q.ID))

	return q, nil
}

// Update applies patch to a quote owned by userID. Quotes owned by someone
// else are reported as not found. An empty author clears the attribution.
func (s *QuoteService) Update(ctx context.Context, userID, id string, patch domain.QuotePatch) (domain.Quote, error) {
	if patch.Author != nil {
		trimmed := strings.TrimSpace(*patch.Author)
		patch.Author = &trimmed
	}

	if patch.Text != nil {
		if err := domain.ValidateQuoteText(*patch.Text); err != nil {
			return domain.Quote{}, err
		}
	}

	if err := domain.ValidateAuthor(patch.Author); err != nil {
		return domain.Quote{}, err
	}

	if patch.Empty() {
		q, err := s.store.GetQuote(ctx, id)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("getting quote: %w", err)
		}

		if !q.OwnedBy(userID) {
			return domain.Quote{}, domain.NewNotFoundError("quote", id)
		}

		return q, nil
	}

	q, err := s.store.UpdateQuote(ctx, userID, id, patch, domain.Now())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("updating quote: %w", err)
	}

	s.invalidate(ctx, id)
	s.log(ctx).InfoContext(ctx, "quote updated", slog.String("quote_id", id))

	return q, nil
}

// Delete removes a quote owned by userID along with its likes and saves.
func (s *QuoteService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteQuote(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting quote: %w", err)
	}

	s.invalidate(ctx, id)
	s.log(ctx).InfoContext(ctx, "quote deleted", slog.String("quote_id", id))

	return nil
}

func (s *QuoteService) invalidate(ctx context.Context, id string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
}

func (s *QuoteService) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// normalizeAuthor trims the author; blank means unattributed.
func normalizeAuthor(author *string) *string {
	if author == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*author)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
