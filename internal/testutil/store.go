// Package testutil provides hand-written fakes for the ports, with error
// injection, shared by the app and http tests.
package testutil

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

type relationKey struct {
	rel    domain.Relation
	userID string
	quote  string
}

// FakeStore is an in-memory ports.Store. Fail makes a named method return
// an error until cleared.
type FakeStore struct {
	mu        sync.Mutex
	quotes    map[string]domain.Quote
	relations map[relationKey]int64
	seq       int64
	failures  map[string]error
	calls     map[string]int
}

// NewFakeStore returns an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		quotes:    make(map[string]domain.Quote),
		relations: make(map[relationKey]int64),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Fail makes method return err; a nil err clears the failure.
func (s *FakeStore) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, method)
		return
	}

	s.failures[method] = err
}

// Calls reports how many times method was invoked.
func (s *FakeStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// Seed inserts quotes directly.
func (s *FakeStore) Seed(quotes ...domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		s.quotes[q.ID] = q
	}
}

// LikeCount is the durable like count of a quote.
func (s *FakeStore) LikeCount(quoteID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countLocked(quoteID)
}

// HasRelation reports whether the durable record exists.
func (s *FakeStore) HasRelation(rel domain.Relation, userID, quoteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.relations[relationKey{rel, userID, quoteID}]

	return ok
}

func (s *FakeStore) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

func (s *FakeStore) Name() string { return "store" }

func (s *FakeStore) Check(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enter("Check")
}

func (s *FakeStore) Open(context.Context) error { return nil }
func (s *FakeStore) Close() error               { return nil }

func (s *FakeStore) GetQuote(_ context.Context, id string) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetQuote"); err != nil {
		return domain.Quote{}, err
	}

	q, ok := s.quotes[id]
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	return q, nil
}

func (s *FakeStore) ListQuotes(_ context.Context, filter domain.ListFilter) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ListQuotes"); err != nil {
		return nil, err
	}

	all := s.newestLocked(func(q domain.Quote) bool {
		return filter.Author == nil || (q.Author != nil && strings.EqualFold(*q.Author, *filter.Author))
	})

	if filter.Cursor != "" {
		cursor, ok := s.quotes[filter.Cursor]
		all = slices.DeleteFunc(all, func(q domain.Quote) bool {
			if ok {
				return !before(q, cursor)
			}

			return q.ID >= filter.Cursor
		})
	}

	if len(all) > filter.Limit {
		all = all[:filter.Limit]
	}

	return all, nil
}

func (s *FakeStore) RandomQuote(context.Context) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("RandomQuote"); err != nil {
		return domain.Quote{}, err
	}

	if len(s.quotes) == 0 {
		return domain.Quote{}, domain.NewNotFoundError("quote", "")
	}

	all := s.newestLocked(nil)

	return all[rand.IntN(len(all))], nil
}

func (s *FakeStore) ListQuotesByIDs(_ context.Context, ids []string) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ListQuotesByIDs"); err != nil {
		return nil, err
	}

	out := make([]domain.Quote, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.quotes[id]; ok {
			out = append(out, q)
		}
	}

	return out, nil
}

func (s *FakeStore) ListQuotesByCreator(_ context.Context, userID string) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ListQuotesByCreator"); err != nil {
		return nil, err
	}

	return s.newestLocked(func(q domain.Quote) bool { return q.OwnedBy(userID) }), nil
}

func (s *FakeStore) ListPopular(_ context.Context, offset, limit int) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ListPopular"); err != nil {
		return nil, err
	}

	all := s.newestLocked(nil)
	slices.SortStableFunc(all, func(a, b domain.Quote) int {
		return cmp.Compare(s.countLocked(b.ID), s.countLocked(a.ID))
	})

	if offset >= len(all) {
		return []domain.Quote{}, nil
	}

	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

func (s *FakeStore) CreateQuote(_ context.Context, q domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("CreateQuote"); err != nil {
		return err
	}

	s.quotes[q.ID] = q

	return nil
}

func (s *FakeStore) UpdateQuote(_ context.Context, owner, id string, patch domain.QuotePatch, at time.Time) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("UpdateQuote"); err != nil {
		return domain.Quote{}, err
	}

	q, ok := s.quotes[id]
	if !ok || !q.OwnedBy(owner) {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	if patch.Text != nil {
		q.Text = *patch.Text
	}

	if patch.Author != nil {
		q.Author = nil
		if *patch.Author != "" {
			author := *patch.Author
			q.Author = &author
		}
	}

	q.UpdatedAt = &at
	s.quotes[id] = q

	return q, nil
}

func (s *FakeStore) DeleteQuote(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("DeleteQuote"); err != nil {
		return err
	}

	q, ok := s.quotes[id]
	if !ok || !q.OwnedBy(owner) {
		return domain.NewNotFoundError("quote", id)
	}

	delete(s.quotes, id)

	for k := range s.relations {
		if k.quote == id {
			delete(s.relations, k)
		}
	}

	return nil
}

func (s *FakeStore) AddRelation(_ context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("AddRelation"); err != nil {
		return false, err
	}

	if _, ok := s.quotes[quoteID]; !ok {
		return false, domain.NewNotFoundError("quote", quoteID)
	}

	k := relationKey{rel, userID, quoteID}
	if _, ok := s.relations[k]; ok {
		return false, nil
	}

	s.seq++
	s.relations[k] = s.seq

	return true, nil
}

func (s *FakeStore) RemoveRelation(_ context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("RemoveRelation"); err != nil {
		return false, err
	}

	k := relationKey{rel, userID, quoteID}
	if _, ok := s.relations[k]; !ok {
		return false, nil
	}

	delete(s.relations, k)

	return true, nil
}

func (s *FakeStore) RelatedQuoteIDs(_ context.Context, rel domain.Relation, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("RelatedQuoteIDs"); err != nil {
		return nil, err
	}

	type row struct {
		id  string
		seq int64
	}

	var rows []row

	for k, seq := range s.relations {
		if k.rel == rel && k.userID == userID {
			rows = append(rows, row{k.quote, seq})
		}
	}

	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(b.seq, a.seq) })

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.id
	}

	return ids, nil
}

func (s *FakeStore) FilterRelated(_ context.Context, rel domain.Relation, userID string, quoteIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("FilterRelated"); err != nil {
		return nil, err
	}

	out := make(map[string]bool)

	for _, id := range quoteIDs {
		if _, ok := s.relations[relationKey{rel, userID, id}]; ok {
			out[id] = true
		}
	}

	return out, nil
}

func (s *FakeStore) LikeCounts(_ context.Context, quoteIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("LikeCounts"); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(quoteIDs))
	for _, id := range quoteIDs {
		out[id] = s.countLocked(id)
	}

	return out, nil
}

func (s *FakeStore) countLocked(quoteID string) int64 {
	var n int64

	for k := range s.relations {
		if k.rel == domain.RelationLike && k.quote == quoteID {
			n++
		}
	}

	return n
}

// newestLocked returns matching quotes ordered created_at DESC, id DESC.
func (s *FakeStore) newestLocked(match func(domain.Quote) bool) []domain.Quote {
	out := make([]domain.Quote, 0, len(s.quotes))

	for _, q := range s.quotes {
		if match == nil || match(q) {
			out = append(out, q)
		}
	}

	slices.SortFunc(out, func(a, b domain.Quote) int {
		if before(a, b) {
			return 1
		}

		if before(b, a) {
			return -1
		}

		return 0
	})

	return out
}

// before reports whether a sorts after b in newest-first order, i.e.
// (a.CreatedAt, a.ID) < (b.CreatedAt, b.ID).
func before(a, b domain.Quote) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return a.ID < b.ID
}

var _ ports.Store = (*FakeStore)(nil)
