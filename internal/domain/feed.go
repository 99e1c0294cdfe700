package domain

// FeedItem is a quote decorated with engagement state.
// Liked and Saved stay nil for anonymous requesters.
type FeedItem struct {
	Quote     Quote
	LikeCount int64
	Liked     *bool
	Saved     *bool
}

// QuotePage is one keyset page of quotes.
type QuotePage struct {
	Items      []Quote
	NextCursor *string
}

// FeedPage is one page of feed items. Newest feeds page by cursor,
// popular feeds by offset.
type FeedPage struct {
	Items      []FeedItem
	NextCursor *string
	NextOffset *int
}

// ListFilter selects a page of quotes.
type ListFilter struct {
	// Author matches case-insensitively when set.
	Author *string

	// Cursor is the ID of the last quote of the previous page.
	Cursor string

	Limit int
}

// FeedSort selects the feed ordering.
type FeedSort string

const (
	SortNewest  FeedSort = "newest"
	SortPopular FeedSort = "popular"
)

// Engagement is the per-quote state returned by the batch engagement lookup.
type Engagement struct {
	LikeCount int64
	Liked     *bool
	Saved     *bool
}
