package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// QuoteID returns a valid, lexically ordered UUID for fixture n.
func QuoteID(n int) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
}

var contractEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// FixtureQuote is quote n, created n minutes after a fixed epoch.
func FixtureQuote(n int, author, owner string) domain.Quote {
	q := domain.Quote{
		ID:        QuoteID(n),
		Text:      fmt.Sprintf("quote number %d", n),
		CreatedAt: contractEpoch.Add(time.Duration(n) * time.Minute),
	}

	if author != "" {
		q.Author = &author
	}

	if owner != "" {
		q.CreatedBy = &owner
	}

	return q
}

// RunStoreContract exercises the ports.Store contract. newStore must return
// an opened, empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Helper()

	ctx := context.Background()

	seed := func(t *testing.T, s ports.Store, quotes ...domain.Quote) {
		t.Helper()

		for _, q := range quotes {
			require.NoError(t, s.CreateQuote(ctx, q))
		}
	}

	quoteIDs := func(quotes []domain.Quote) []string {
		out := make([]string, len(quotes))
		for i, q := range quotes {
			out[i] = q.ID
		}

		return out
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		q := FixtureQuote(1, "Seneca", "u1")
		plain := FixtureQuote(2, "", "")
		seed(t, s, q, plain)

		got, err := s.GetQuote(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, q, got)

		got, err = s.GetQuote(ctx, plain.ID)
		require.NoError(t, err)
		assert.Equal(t, plain, got)

		_, err = s.GetQuote(ctx, QuoteID(99))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("list newest with cursor", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 5; n++ {
			seed(t, s, FixtureQuote(n, "", ""))
		}

		page, err := s.ListQuotes(ctx, domain.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(5), QuoteID(4)}, quoteIDs(page))

		page, err = s.ListQuotes(ctx, domain.ListFilter{Cursor: QuoteID(4), Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(3), QuoteID(2), QuoteID(1)}, quoteIDs(page))

		page, err = s.ListQuotes(ctx, domain.ListFilter{Cursor: QuoteID(1), Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("missing cursor falls back to id order", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []int{1, 2, 4, 5} {
			seed(t, s, FixtureQuote(n, "", ""))
		}

		page, err := s.ListQuotes(ctx, domain.ListFilter{Cursor: QuoteID(3), Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(2), QuoteID(1)}, quoteIDs(page))
	})

	t.Run("equal timestamps order by id", func(t *testing.T) {
		s := newStore(t)
		a, b, c := FixtureQuote(1, "", ""), FixtureQuote(2, "", ""), FixtureQuote(3, "", "")
		b.CreatedAt, c.CreatedAt = a.CreatedAt, a.CreatedAt
		seed(t, s, b, a, c)

		page, err := s.ListQuotes(ctx, domain.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID, b.ID}, quoteIDs(page))

		page, err = s.ListQuotes(ctx, domain.ListFilter{Cursor: b.ID, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID}, quoteIDs(page))
	})

	t.Run("author filter is case-insensitive", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			FixtureQuote(1, "Mark Twain", ""),
			FixtureQuote(2, "Seneca", ""),
			FixtureQuote(3, "MARK TWAIN", ""),
			FixtureQuote(4, "", ""),
		)

		author := "mark twain"

		page, err := s.ListQuotes(ctx, domain.ListFilter{Author: &author, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(3), QuoteID(1)}, quoteIDs(page))

		page, err = s.ListQuotes(ctx, domain.ListFilter{Author: &author, Cursor: QuoteID(3), Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(1)}, quoteIDs(page))
	})

	t.Run("random quote", func(t *testing.T) {
		s := newStore(t)

		_, err := s.RandomQuote(ctx)
		assert.True(t, domain.IsNotFound(err))

		seed(t, s, FixtureQuote(1, "", ""), FixtureQuote(2, "", ""))

		q, err := s.RandomQuote(ctx)
		require.NoError(t, err)
		assert.Contains(t, []string{QuoteID(1), QuoteID(2)}, q.ID)
	})

	t.Run("by ids and by creator", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			FixtureQuote(1, "", "u1"),
			FixtureQuote(2, "", "u2"),
			FixtureQuote(3, "", "u1"),
		)

		found, err := s.ListQuotesByIDs(ctx, []string{QuoteID(3), QuoteID(9), QuoteID(1)})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{QuoteID(1), QuoteID(3)}, quoteIDs(found))

		found, err = s.ListQuotesByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, found)

		mine, err := s.ListQuotesByCreator(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(3), QuoteID(1)}, quoteIDs(mine))
	})

	t.Run("popular ordering", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 4; n++ {
			seed(t, s, FixtureQuote(n, "", ""))
		}

		for _, like := range []struct {
			user string
			n    int
		}{{"u1", 2}, {"u2", 2}, {"u1", 1}, {"u1", 4}} {
			_, err := s.AddRelation(ctx, domain.RelationLike, like.user, QuoteID(like.n))
			require.NoError(t, err)
		}

		_, err := s.AddRelation(ctx, domain.RelationSave, "u3", QuoteID(3))
		require.NoError(t, err)

		page, err := s.ListPopular(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(2), QuoteID(4), QuoteID(1), QuoteID(3)}, quoteIDs(page))

		page, err = s.ListPopular(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(4), QuoteID(1)}, quoteIDs(page))

		page, err = s.ListPopular(ctx, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("update is owner scoped", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, FixtureQuote(1, "Seneca", "u1"))

		at := contractEpoch.Add(time.Hour)
		text := "edited"

		_, err := s.UpdateQuote(ctx, "u2", QuoteID(1), domain.QuotePatch{Text: &text}, at)
		assert.True(t, domain.IsNotFound(err))

		got, err := s.UpdateQuote(ctx, "u1", QuoteID(1), domain.QuotePatch{Text: &text}, at)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)
		require.NotNil(t, got.Author)
		assert.Equal(t, "Seneca", *got.Author)
		require.NotNil(t, got.UpdatedAt)
		assert.True(t, at.Equal(*got.UpdatedAt))

		empty := ""

		got, err = s.UpdateQuote(ctx, "u1", QuoteID(1), domain.QuotePatch{Author: &empty}, at)
		require.NoError(t, err)
		assert.Nil(t, got.Author)
		assert.Equal(t, "edited", got.Text)

		stored, err := s.GetQuote(ctx, QuoteID(1))
		require.NoError(t, err)
		assert.Equal(t, got, stored)

		_, err = s.UpdateQuote(ctx, "u1", QuoteID(9), domain.QuotePatch{Text: &text}, at)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("delete is owner scoped and cascades", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, FixtureQuote(1, "", "u1"), FixtureQuote(2, "", "u1"))

		_, err := s.AddRelation(ctx, domain.RelationLike, "u2", QuoteID(1))
		require.NoError(t, err)
		_, err = s.AddRelation(ctx, domain.RelationSave, "u2", QuoteID(1))
		require.NoError(t, err)

		err = s.DeleteQuote(ctx, "u2", QuoteID(1))
		assert.True(t, domain.IsNotFound(err))

		require.NoError(t, s.DeleteQuote(ctx, "u1", QuoteID(1)))

		_, err = s.GetQuote(ctx, QuoteID(1))
		assert.True(t, domain.IsNotFound(err))

		liked, err := s.RelatedQuoteIDs(ctx, domain.RelationLike, "u2")
		require.NoError(t, err)
		assert.Empty(t, liked)

		saved, err := s.RelatedQuoteIDs(ctx, domain.RelationSave, "u2")
		require.NoError(t, err)
		assert.Empty(t, saved)

		err = s.DeleteQuote(ctx, "u1", QuoteID(1))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("relations are idempotent", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, FixtureQuote(1, "", ""))

		for _, rel := range []domain.Relation{domain.RelationLike, domain.RelationSave} {
			inserted, err := s.AddRelation(ctx, rel, "u1", QuoteID(1))
			require.NoError(t, err)
			assert.True(t, inserted, rel.String())

			inserted, err = s.AddRelation(ctx, rel, "u1", QuoteID(1))
			require.NoError(t, err)
			assert.False(t, inserted, rel.String())

			removed, err := s.RemoveRelation(ctx, rel, "u1", QuoteID(1))
			require.NoError(t, err)
			assert.True(t, removed, rel.String())

			removed, err = s.RemoveRelation(ctx, rel, "u1", QuoteID(1))
			require.NoError(t, err)
			assert.False(t, removed, rel.String())
		}

		_, err := s.AddRelation(ctx, domain.RelationLike, "u1", QuoteID(9))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("relation lookups", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 3; n++ {
			seed(t, s, FixtureQuote(n, "", ""))
		}

		for _, n := range []int{1, 3, 2} {
			_, err := s.AddRelation(ctx, domain.RelationLike, "u1", QuoteID(n))
			require.NoError(t, err)
		}

		_, err := s.AddRelation(ctx, domain.RelationLike, "u2", QuoteID(3))
		require.NoError(t, err)
		_, err = s.AddRelation(ctx, domain.RelationSave, "u2", QuoteID(1))
		require.NoError(t, err)

		liked, err := s.RelatedQuoteIDs(ctx, domain.RelationLike, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{QuoteID(2), QuoteID(3), QuoteID(1)}, liked)

		none, err := s.RelatedQuoteIDs(ctx, domain.RelationSave, "u1")
		require.NoError(t, err)
		assert.Empty(t, none)

		subset, err := s.FilterRelated(ctx, domain.RelationLike, "u2", []string{QuoteID(1), QuoteID(3)})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{QuoteID(3): true}, subset)

		subset, err = s.FilterRelated(ctx, domain.RelationSave, "u2", []string{QuoteID(1), QuoteID(3)})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{QuoteID(1): true}, subset)

		counts, err := s.LikeCounts(ctx, []string{QuoteID(1), QuoteID(3), QuoteID(9)})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{QuoteID(1): 1, QuoteID(3): 2, QuoteID(9): 0}, counts)

		counts, err = s.LikeCounts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("health check", func(t *testing.T) {
		s := newStore(t)

		assert.Equal(t, "store", s.Name())
		assert.NoError(t, s.Check(ctx))
	})
}
