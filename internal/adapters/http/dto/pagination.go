package dto

import "strings"

// DefaultLimit is the default number of items per page.
const DefaultLimit = 20

// MaxLimit is the maximum allowed items per page.
const MaxLimit = 100

// PaginationRequest represents keyset pagination parameters.
type PaginationRequest struct {
	// Cursor is the ID of the last item of the previous page.
	Cursor string `form:"cursor" json:"cursor" validate:"omitempty,uuid"`

	// Limit is the maximum number of items to return (1-100, default 20).
	Limit int `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with the default applied and capped at max.
func (p *PaginationRequest) GetLimit(def, limitMax int) int {
	if def <= 0 {
		def = DefaultLimit
	}

	if limitMax <= 0 {
		limitMax = MaxLimit
	}

	switch {
	case p.Limit <= 0:
		return min(def, limitMax)
	case p.Limit > limitMax:
		return limitMax
	default:
		return p.Limit
	}
}

// ListQuotesRequest is the query for GET /quotes.
type ListQuotesRequest struct {
	PaginationRequest

	// Author filters case-insensitively; blank means unfiltered.
	Author string `form:"author" json:"author" validate:"max=500"`
}

// AuthorFilter returns the trimmed author, or nil when none was given.
func (r *ListQuotesRequest) AuthorFilter() *string {
	author := strings.TrimSpace(r.Author)
	if author == "" {
		return nil
	}

	return &author
}

// FeedRequest is the query for GET /feed.
type FeedRequest struct {
	PaginationRequest

	Sort   string `form:"sort"   json:"sort"   validate:"omitempty,oneof=newest popular"`
	Offset int    `form:"offset" json:"offset" validate:"gte=0"`
}

// SortOrDefault returns the requested ordering, newest when unset.
func (r *FeedRequest) SortOrDefault() string {
	if r.Sort == "" {
		return "newest"
	}

	return r.Sort
}

// EngagementRequest is the query for GET /feed/engagement.
type EngagementRequest struct {
	// IDs is a comma-separated list of quote IDs.
	IDs string `form:"ids" json:"ids" validate:"required"`
}

// QuoteIDs splits IDs, dropping blanks and duplicates. Each ID must be a UUID.
func (r *EngagementRequest) QuoteIDs() ([]string, map[string]string) {
	parts := strings.Split(r.IDs, ",")
	ids := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		if err := Validator().Var(id, "uuid"); err != nil {
			return nil, map[string]string{"ids": "must be a comma-separated list of UUIDs"}
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, map[string]string{"ids": msgRequired}
	}

	if len(ids) > MaxLimit {
		return nil, map[string]string{"ids": "must contain at most 100 ids"}
	}

	return ids, nil
}

// PaginatedResponse is a generic paginated response structure.
type PaginatedResponse[T any] struct {
	// Items is the array of items for this page.
	Items []T `json:"items"`

	// NextCursor is the cursor for the next keyset page. Empty when done.
	NextCursor string `json:"nextCursor,omitempty"`

	// NextOffset is the offset of the next page for offset-paged feeds.
	NextOffset *int `json:"nextOffset,omitempty"`

	// HasMore indicates whether there are more items after this page.
	HasMore bool `json:"hasMore"`
}

// NewCursorPage builds a keyset page response.
func NewCursorPage[T any](items []T, next *string) *PaginatedResponse[T] {
	resp := &PaginatedResponse[T]{Items: nonNil(items)}
	if next != nil {
		resp.NextCursor = *next
		resp.HasMore = true
	}

	return resp
}

// NewOffsetPage builds an offset page response.
func NewOffsetPage[T any](items []T, next *int) *PaginatedResponse[T] {
	return &PaginatedResponse[T]{
		Items:      nonNil(items),
		NextOffset: next,
		HasMore:    next != nil,
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}
