package app

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// Cache key layout. Everything lives under "quotes:".
const (
	randomQuoteKey   = "quotes:random"
	authorListPrefix = "quotes:by_author:"
	likeCounterPfx   = "quotes:likes:"
	likedSetPrefix   = "quotes:liked:"
	savedSetPrefix   = "quotes:saved:"
)

// authorListKey is quotes:by_author:<escaped author>:<cursor>:<limit>.
// The author is lower-cased because the store matches case-insensitively,
// so differently-cased filters share one entry.
func authorListKey(author, cursor string, limit int) string {
	var b strings.Builder

	b.WriteString(authorListPrefix)
	b.WriteString(url.QueryEscape(strings.ToLower(author)))
	b.WriteByte(':')
	b.WriteString(cursor)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(limit))

	return b.String()
}

func likeCounterKey(quoteID string) string {
	return likeCounterPfx + quoteID
}

func membershipKey(rel domain.Relation, userID string) string {
	if rel == domain.RelationSave {
		return savedSetPrefix + userID
	}

	return likedSetPrefix + userID
}
