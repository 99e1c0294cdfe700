package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
	"github.com/jsamuelsen/quote-feed/internal/testutil"
)

func newMemoryStore(t *testing.T) ports.Store {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Open(context.Background()))

	return s
}

func TestStore_Contract(t *testing.T) {
	testutil.RunStoreContract(t, newMemoryStore)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quotes.db")

	s, err := New("file:" + path)
	require.NoError(t, err)
	require.NoError(t, s.Open(ctx))

	q := testutil.FixtureQuote(1, "Seneca", "u1")
	require.NoError(t, s.CreateQuote(ctx, q))

	_, err = s.AddRelation(ctx, domain.RelationLike, "u2", q.ID)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New("file:" + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Open(ctx), "schema creation is idempotent")

	got, err := s.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q, got)

	counts, err := s.LikeCounts(ctx, []string{q.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[q.ID])
}

func TestStore_UnknownRelation(t *testing.T) {
	s := newMemoryStore(t)

	_, err := s.AddRelation(context.Background(), domain.Relation(0), "u1", "q1")
	assert.True(t, domain.IsValidation(err))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
