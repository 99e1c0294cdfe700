package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/adapters/cache/memory"
	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/testutil"
)

type feedFixture struct {
	store      *testutil.FakeStore
	mem        *memory.Cache
	engagement *Engagement
	feed       *FeedAssembler
}

func newFeedFixture(t *testing.T, quotes ...domain.Quote) *feedFixture {
	t.Helper()

	f := &feedFixture{
		store: testutil.NewFakeStore(),
		mem:   memory.New(),
	}
	f.store.Seed(quotes...)
	f.engagement = NewEngagement(EngagementConfig{
		Store:  f.store,
		Cache:  f.mem,
		Logger: discardLogger(),
	})
	f.feed = NewFeedAssembler(FeedAssemblerConfig{
		Store:      f.store,
		Engagement: f.engagement,
		Logger:     discardLogger(),
	})

	return f
}

func (f *feedFixture) like(t *testing.T, user, quoteID string) {
	t.Helper()

	_, err := f.engagement.ToggleLike(context.Background(), user, quoteID, domain.ActionAdd)
	require.NoError(t, err)
}

func (f *feedFixture) save(t *testing.T, user, quoteID string) {
	t.Helper()

	_, err := f.engagement.ToggleSave(context.Background(), user, quoteID, domain.ActionAdd)
	require.NoError(t, err)
}

func manyQuotes(n int) []domain.Quote {
	quotes := make([]domain.Quote, n)
	for i := range quotes {
		quotes[i] = newQuote(fmt.Sprintf("q%02d", i), "", i)
	}

	return quotes
}

func TestNewFeedAssembler_Panics(t *testing.T) {
	store := testutil.NewFakeStore()

	assert.Panics(t, func() { NewFeedAssembler(FeedAssemblerConfig{Store: store}) })
	assert.Panics(t, func() { NewFeedAssembler(FeedAssemblerConfig{}) })
}

func TestFeedAssembler_GetFeedNewest(t *testing.T) {
	ctx := context.Background()

	t.Run("pages are disjoint and cover everything", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(7)...)

		var (
			seen   []string
			cursor string
			pages  int
		)

		for {
			page, err := f.feed.GetFeedNewest(ctx, "", cursor, 3)
			require.NoError(t, err)

			pages++
			seen = append(seen, itemIDs(page.Items)...)

			if page.NextCursor == nil {
				break
			}

			cursor = *page.NextCursor
		}

		assert.Equal(t, 3, pages)
		assert.Equal(t, []string{"q06", "q05", "q04", "q03", "q02", "q01", "q00"}, seen)
	})

	t.Run("exact page boundary has no next cursor", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(3)...)

		page, err := f.feed.GetFeedNewest(ctx, "", "", 3)
		require.NoError(t, err)
		assert.Len(t, page.Items, 3)
		assert.Nil(t, page.NextCursor)
		assert.Nil(t, page.NextOffset)
	})

	t.Run("identical timestamps order by id", func(t *testing.T) {
		f := newFeedFixture(t, newQuote("a", "", 1), newQuote("c", "", 1), newQuote("b", "", 1))

		page, err := f.feed.GetFeedNewest(ctx, "", "", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, itemIDs(page.Items))

		page, err = f.feed.GetFeedNewest(ctx, "", *page.NextCursor, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, itemIDs(page.Items))
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		f := newFeedFixture(t)

		_, err := f.feed.GetFeedNewest(ctx, "", "", 0)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("anonymous requester gets counts without flags", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(2)...)
		f.like(t, "u1", "q00")

		page, err := f.feed.GetFeedNewest(ctx, "", "", 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)

		for _, item := range page.Items {
			assert.Nil(t, item.Liked)
			assert.Nil(t, item.Saved)
		}

		assert.Equal(t, int64(1), page.Items[1].LikeCount)
		assert.Equal(t, 0, f.store.Calls("FilterRelated"))
	})

	t.Run("store error propagates", func(t *testing.T) {
		f := newFeedFixture(t)
		f.store.Fail("ListQuotes", domain.NewUnavailableError("store", "down"))

		_, err := f.feed.GetFeedNewest(ctx, "u1", "", 10)
		assert.True(t, domain.IsUnavailable(err))
	})

	t.Run("engagement lookup error fails the page", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(2)...)
		f.store.Fail("FilterRelated", errors.New("deadlock detected"))

		_, err := f.feed.GetFeedNewest(ctx, "u1", "", 10)
		require.Error(t, err)
	})
}

func TestFeedAssembler_PerUserFlags(t *testing.T) {
	ctx := context.Background()
	f := newFeedFixture(t, newQuote("q1", "", 1), newQuote("q2", "", 2))

	f.like(t, "u1", "q1")
	f.save(t, "u2", "q1")
	f.like(t, "u2", "q2")

	tests := []struct {
		requester string
		wantLiked map[string]bool
		wantSaved map[string]bool
	}{
		{"u1", map[string]bool{"q1": true, "q2": false}, map[string]bool{"q1": false, "q2": false}},
		{"u2", map[string]bool{"q1": false, "q2": true}, map[string]bool{"q1": true, "q2": false}},
		{"u3", map[string]bool{"q1": false, "q2": false}, map[string]bool{"q1": false, "q2": false}},
	}

	for _, tt := range tests {
		t.Run(tt.requester, func(t *testing.T) {
			page, err := f.feed.GetFeedNewest(ctx, tt.requester, "", 10)
			require.NoError(t, err)

			for _, item := range page.Items {
				require.NotNil(t, item.Liked)
				require.NotNil(t, item.Saved)
				assert.Equal(t, tt.wantLiked[item.Quote.ID], *item.Liked, item.Quote.ID)
				assert.Equal(t, tt.wantSaved[item.Quote.ID], *item.Saved, item.Quote.ID)
				assert.Equal(t, int64(1), item.LikeCount)
			}
		})
	}
}

func TestFeedAssembler_GetFeedPopular(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by likes then recency", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(5)...)
		f.like(t, "u1", "q01")
		f.like(t, "u2", "q01")
		f.like(t, "u1", "q03")
		f.like(t, "u1", "q00")

		page, err := f.feed.GetFeedPopular(ctx, "u1", 0, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"q01", "q03", "q00"}, itemIDs(page.Items))
		assert.Nil(t, page.NextCursor)
		require.NotNil(t, page.NextOffset)
		assert.Equal(t, 3, *page.NextOffset)
		assert.Equal(t, int64(2), page.Items[0].LikeCount)

		page, err = f.feed.GetFeedPopular(ctx, "u1", *page.NextOffset, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"q04", "q02"}, itemIDs(page.Items))
		assert.Nil(t, page.NextOffset)
	})

	t.Run("ordering is stable across calls", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(6)...)

		first, err := f.feed.GetFeedPopular(ctx, "", 0, 6)
		require.NoError(t, err)

		second, err := f.feed.GetFeedPopular(ctx, "", 0, 6)
		require.NoError(t, err)

		assert.Equal(t, itemIDs(first.Items), itemIDs(second.Items))
	})

	t.Run("offset past the end is empty", func(t *testing.T) {
		f := newFeedFixture(t, manyQuotes(2)...)

		page, err := f.feed.GetFeedPopular(ctx, "", 10, 5)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Nil(t, page.NextOffset)
	})

	t.Run("rejects bad paging", func(t *testing.T) {
		f := newFeedFixture(t)

		_, err := f.feed.GetFeedPopular(ctx, "", -1, 5)
		assert.True(t, domain.IsValidation(err))

		_, err = f.feed.GetFeedPopular(ctx, "", 0, 0)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestFeedAssembler_LikedAndSavedFeeds(t *testing.T) {
	ctx := context.Background()
	f := newFeedFixture(t, manyQuotes(4)...)

	f.like(t, "u1", "q00")
	f.like(t, "u1", "q02")
	f.save(t, "u1", "q03")
	f.save(t, "u1", "q01")

	liked, err := f.feed.LikedFeed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q02", "q00"}, itemIDs(liked))

	for _, item := range liked {
		assert.True(t, *item.Liked)
		assert.False(t, *item.Saved)
	}

	saved, err := f.feed.SavedFeed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q01", "q03"}, itemIDs(saved))

	empty, err := f.feed.LikedFeed(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFeedAssembler_LikedFeedSkipsDeletedQuotes(t *testing.T) {
	ctx := context.Background()
	f := newFeedFixture(t, ownedQuote("q1", "owner", 1), ownedQuote("q2", "owner", 2))

	f.like(t, "u1", "q1")
	f.like(t, "u1", "q2")

	require.NoError(t, f.store.DeleteQuote(ctx, "owner", "q2"))

	liked, err := f.feed.LikedFeed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, itemIDs(liked))
}

func TestFeedAssembler_GetEngagement(t *testing.T) {
	ctx := context.Background()
	f := newFeedFixture(t, newQuote("q1", "", 1), newQuote("q2", "", 2))

	f.like(t, "u1", "q1")
	f.save(t, "u1", "q2")

	got, err := f.feed.GetEngagement(ctx, "u1", []string{"q1", "q2"})
	require.NoError(t, err)
	assert.Equal(t, domain.Engagement{LikeCount: 1, Liked: ptr(true), Saved: ptr(false)}, got["q1"])
	assert.Equal(t, domain.Engagement{LikeCount: 0, Liked: ptr(false), Saved: ptr(true)}, got["q2"])

	anon, err := f.feed.GetEngagement(ctx, "", []string{"q1"})
	require.NoError(t, err)
	assert.Equal(t, domain.Engagement{LikeCount: 1}, anon["q1"])

	empty, err := f.feed.GetEngagement(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
