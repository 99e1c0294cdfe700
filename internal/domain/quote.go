// Package domain contains the quote feed's entities, value types and errors.
// Nothing in here knows about HTTP, SQL or Redis.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field limits for user-authored quotes.
const (
	MaxQuoteTextLength = 10000
	MaxAuthorLength    = 500
)

// Quote is a user-visible quotation.
type Quote struct {
	// ID is a UUIDv7 string, so lexical order follows creation order.
	ID string

	Text string

	// Author is nil when the quote is unattributed.
	Author *string

	// CreatedBy is the owning user; nil for seeded quotes.
	CreatedBy *string

	CreatedAt time.Time

	// UpdatedAt is nil until the first edit.
	UpdatedAt *time.Time
}

// OwnedBy reports whether userID owns the quote.
func (q Quote) OwnedBy(userID string) bool {
	return q.CreatedBy != nil && *q.CreatedBy == userID
}

// QuotePatch carries a partial update. Nil fields are left unchanged; an
// empty Author clears the attribution.
type QuotePatch struct {
	Text   *string
	Author *string
}

// Empty reports whether the patch changes nothing.
func (p QuotePatch) Empty() bool {
	return p.Text == nil && p.Author == nil
}

// NewQuoteID returns a fresh time-ordered quote identifier.
func NewQuoteID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating quote id: %w", err)
	}

	return id.String(), nil
}

// Now returns the current time in the precision every store keeps.
func Now() time.Time {
	return NormalizeTime(time.Now())
}

// NormalizeTime converts t to UTC and drops sub-microsecond precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ValidateQuoteText checks the text length rules.
func ValidateQuoteText(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	if utf8.RuneCountInString(text) > MaxQuoteTextLength {
		return NewValidationErrorWithValue("text",
			fmt.Sprintf("must be at most %d characters", MaxQuoteTextLength),
			utf8.RuneCountInString(text))
	}

	return nil
}

// ValidateAuthor checks an optional author name.
func ValidateAuthor(author *string) error {
	if author == nil {
		return nil
	}

	if utf8.RuneCountInString(*author) > MaxAuthorLength {
		return NewValidationError("author",
			fmt.Sprintf("must be at most %d characters", MaxAuthorLength))
	}

	return nil
}
