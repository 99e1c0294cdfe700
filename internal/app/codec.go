package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// Cached payloads are JSON so they stay readable with redis-cli.

type cachedQuote struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Author    *string    `json:"author"`
	CreatedBy *string    `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

type cachedPage struct {
	Items      []cachedQuote `json:"items"`
	NextCursor *string       `json:"nextCursor"`
}

func toCached(q domain.Quote) cachedQuote {
	return cachedQuote(q)
}

func fromCached(c cachedQuote) domain.Quote {
	q := domain.Quote(c)
	q.CreatedAt = domain.NormalizeTime(q.CreatedAt)

	if q.UpdatedAt != nil {
		t := domain.NormalizeTime(*q.UpdatedAt)
		q.UpdatedAt = &t
	}

	return q
}

func encodeQuote(q domain.Quote) ([]byte, error) {
	return json.Marshal(toCached(q))
}

func decodeQuote(raw []byte) (domain.Quote, error) {
	var c cachedQuote
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Quote{}, fmt.Errorf("decoding cached quote: %w", err)
	}

	if c.ID == "" {
		return domain.Quote{}, fmt.Errorf("decoding cached quote: missing id")
	}

	return fromCached(c), nil
}

func encodePage(p domain.QuotePage) ([]byte, error) {
	c := cachedPage{Items: make([]cachedQuote, len(p.Items)), NextCursor: p.NextCursor}
	for i, q := range p.Items {
		c.Items[i] = toCached(q)
	}

	return json.Marshal(c)
}

func decodePage(raw []byte) (domain.QuotePage, error) {
	var c cachedPage
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.QuotePage{}, fmt.Errorf("decoding cached page: %w", err)
	}

	p := domain.QuotePage{Items: make([]domain.Quote, len(c.Items)), NextCursor: c.NextCursor}
	for i, q := range c.Items {
		p.Items[i] = fromCached(q)
	}

	return p, nil
}
