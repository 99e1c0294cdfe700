package dto

import (
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// QuoteIDParam binds the :id path segment.
type QuoteIDParam struct {
	ID string `uri:"id" json:"id" validate:"required,uuid"`
}

// CreateQuoteRequest is the body of POST /dashboard/quotes.
type CreateQuoteRequest struct {
	Text   string  `json:"text"   validate:"required,notempty,max=10000"`
	Author *string `json:"author" validate:"omitempty,max=500"`
}

// UpdateQuoteRequest is the body of PUT /dashboard/quotes/:id. Omitted
// fields are left unchanged; an empty author clears it.
type UpdateQuoteRequest struct {
	Text   *string `json:"text"   validate:"omitempty,notempty,max=10000"`
	Author *string `json:"author" validate:"omitempty,max=500"`
}

// Validate rejects a body that changes nothing.
func (r *UpdateQuoteRequest) Validate() error {
	if r.Text == nil && r.Author == nil {
		return domain.NewValidationError("body", "at least one of text or author is required")
	}

	return nil
}

// Patch converts the request to a domain patch.
func (r *UpdateQuoteRequest) Patch() domain.QuotePatch {
	return domain.QuotePatch{Text: r.Text, Author: r.Author}
}

// QuoteResponse is the JSON shape of a quote.
type QuoteResponse struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Author    *string    `json:"author"`
	CreatedBy *string    `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Text:      q.Text,
		Author:    q.Author,
		CreatedBy: q.CreatedBy,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

// NewQuoteResponses converts a slice of domain quotes.
func NewQuoteResponses(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = NewQuoteResponse(q)
	}

	return out
}

// FeedItemResponse is a quote with its engagement state. Liked and Saved
// are omitted for anonymous callers.
type FeedItemResponse struct {
	QuoteResponse

	LikeCount int64 `json:"likeCount"`
	Liked     *bool `json:"liked,omitempty"`
	Saved     *bool `json:"saved,omitempty"`
}

// NewFeedItemResponses converts feed items.
func NewFeedItemResponses(items []domain.FeedItem) []FeedItemResponse {
	out := make([]FeedItemResponse, len(items))
	for i, it := range items {
		out[i] = FeedItemResponse{
			QuoteResponse: NewQuoteResponse(it.Quote),
			LikeCount:     it.LikeCount,
			Liked:         it.Liked,
			Saved:         it.Saved,
		}
	}

	return out
}

// EngagementResponse is one entry of GET /feed/engagement.
type EngagementResponse struct {
	LikeCount int64 `json:"likeCount"`
	Liked     *bool `json:"liked,omitempty"`
	Saved     *bool `json:"saved,omitempty"`
}

// NewEngagementResponses converts the batch engagement lookup.
func NewEngagementResponses(m map[string]domain.Engagement) map[string]EngagementResponse {
	out := make(map[string]EngagementResponse, len(m))
	for id, e := range m {
		out[id] = EngagementResponse{LikeCount: e.LikeCount, Liked: e.Liked, Saved: e.Saved}
	}

	return out
}

// ToggleResponse reports the state after a like or save toggle.
type ToggleResponse struct {
	QuoteID   string `json:"quoteId"`
	Liked     *bool  `json:"liked,omitempty"`
	Saved     *bool  `json:"saved,omitempty"`
	LikeCount *int64 `json:"likeCount,omitempty"`
}

// NewToggleResponse converts a toggle outcome.
func NewToggleResponse(s domain.EngagementState) ToggleResponse {
	active := s.Active
	resp := ToggleResponse{QuoteID: s.QuoteID}

	if s.Relation == domain.RelationSave {
		resp.Saved = &active
		return resp
	}

	count := s.LikeCount
	resp.Liked = &active
	resp.LikeCount = &count

	return resp
}
