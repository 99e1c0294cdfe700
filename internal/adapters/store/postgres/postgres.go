// Package postgres is the production store, on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

const quoteColumns = "id::text, text, author, created_by, created_at, updated_at"

// Postgres error codes the store translates.
const (
	codeInvalidText         = "22P02"
	codeForeignKeyViolation = "23503"
)

// Config holds pool settings.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Store implements ports.Store. The pool is created by Open.
type Store struct {
	cfg  Config
	pool *pgxpool.Pool
}

func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Open creates the pool, verifies connectivity and creates the schema.
func (s *Store) Open(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}

	if s.cfg.MaxConns > 0 {
		poolCfg.MaxConns = s.cfg.MaxConns
	}

	if s.cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = s.cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return wrap("connect", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.pool = pool

	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "store" }

func (s *Store) Check(ctx context.Context) error {
	if s.pool == nil {
		return domain.NewUnavailableError("postgres", "not connected")
	}

	return s.pool.Ping(ctx)
}

func (s *Store) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	rows, _ := s.pool.Query(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE id = $1", id)

	q, err := pgx.CollectExactlyOneRow(rows, scanQuote)
	if err != nil {
		return domain.Quote{}, notFoundOr(err, id, "get quote")
	}

	return q, nil
}

func (s *Store) ListQuotes(ctx context.Context, filter domain.ListFilter) ([]domain.Quote, error) {
	var (
		a     args
		where []string
	)

	if filter.Author != nil {
		where = append(where, "lower(author) = lower("+a.add(*filter.Author)+")")
	}

	if filter.Cursor != "" {
		c := a.add(filter.Cursor)
		where = append(where, `CASE WHEN EXISTS (SELECT 1 FROM quotes c WHERE c.id = `+c+`)
			THEN (created_at, id) < (SELECT c.created_at, c.id FROM quotes c WHERE c.id = `+c+`)
			ELSE id < `+c+` END`)
	}

	query := "SELECT " + quoteColumns + " FROM quotes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT " + a.add(filter.Limit)

	return s.queryQuotes(ctx, "list quotes", query, a...)
}

func (s *Store) RandomQuote(ctx context.Context) (domain.Quote, error) {
	rows, _ := s.pool.Query(ctx, "SELECT "+quoteColumns+" FROM quotes ORDER BY random() LIMIT 1")

	q, err := pgx.CollectExactlyOneRow(rows, scanQuote)
	if err != nil {
		return domain.Quote{}, notFoundOr(err, "", "random quote")
	}

	return q, nil
}

func (s *Store) ListQuotesByIDs(ctx context.Context, ids []string) ([]domain.Quote, error) {
	if len(ids) == 0 {
		return []domain.Quote{}, nil
	}

	return s.queryQuotes(ctx, "list quotes by id",
		"SELECT "+quoteColumns+" FROM quotes WHERE id = ANY($1)", ids)
}

func (s *Store) ListQuotesByCreator(ctx context.Context, userID string) ([]domain.Quote, error) {
	return s.queryQuotes(ctx, "list quotes by creator",
		"SELECT "+quoteColumns+" FROM quotes WHERE created_by = $1 ORDER BY created_at DESC, id DESC", userID)
}

func (s *Store) ListPopular(ctx context.Context, offset, limit int) ([]domain.Quote, error) {
	return s.queryQuotes(ctx, "list popular quotes", `
		SELECT q.id::text, q.text, q.author, q.created_by, q.created_at, q.updated_at
		FROM quotes q
		LEFT JOIN (SELECT quote_id, COUNT(*) AS n FROM quote_likes GROUP BY quote_id) l ON l.quote_id = q.id
		ORDER BY COALESCE(l.n, 0) DESC, q.created_at DESC, q.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

func (s *Store) CreateQuote(ctx context.Context, q domain.Quote) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO quotes (id, text, author, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		q.ID, q.Text, q.Author, q.CreatedBy, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return wrap("create quote", err)
	}

	return nil
}

func (s *Store) UpdateQuote(ctx context.Context, owner, id string, patch domain.QuotePatch, at time.Time) (domain.Quote, error) {
	var author *string
	if patch.Author != nil && *patch.Author != "" {
		author = patch.Author
	}

	rows, _ := s.pool.Query(ctx, `
		UPDATE quotes SET
			text = COALESCE($1, text),
			author = CASE WHEN $2 THEN $3 ELSE author END,
			updated_at = $4
		WHERE id = $5 AND created_by = $6
		RETURNING `+quoteColumns,
		patch.Text, patch.Author != nil, author, domain.NormalizeTime(at), id, owner)

	q, err := pgx.CollectExactlyOneRow(rows, scanQuote)
	if err != nil {
		return domain.Quote{}, notFoundOr(err, id, "update quote")
	}

	return q, nil
}

// DeleteQuote relies on ON DELETE CASCADE for likes and saves.
func (s *Store) DeleteQuote(ctx context.Context, owner, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM quotes WHERE id = $1 AND created_by = $2", id, owner)
	if err != nil {
		return notFoundOr(err, id, "delete quote")
	}

	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("quote", id)
	}

	return nil
}

// AddRelation checks the quote and inserts in one statement.
func (s *Store) AddRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	table, err := relationTable(rel)
	if err != nil {
		return false, err
	}

	var exists, inserted bool

	err = s.pool.QueryRow(ctx, `
		WITH q AS (SELECT id FROM quotes WHERE id = $2),
		ins AS (
			INSERT INTO `+table+` (user_id, quote_id)
			SELECT $1, id FROM q
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM q), EXISTS (SELECT 1 FROM ins)`,
		userID, quoteID).Scan(&exists, &inserted)
	if err != nil {
		return false, notFoundOr(err, quoteID, "insert "+rel.String())
	}

	if !exists {
		return false, domain.NewNotFoundError("quote", quoteID)
	}

	return inserted, nil
}

func (s *Store) RemoveRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	table, err := relationTable(rel)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE user_id = $1 AND quote_id = $2", userID, quoteID)
	if err != nil {
		return false, notFoundOr(err, quoteID, "delete "+rel.String())
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) RelatedQuoteIDs(ctx context.Context, rel domain.Relation, userID string) ([]string, error) {
	table, err := relationTable(rel)
	if err != nil {
		return nil, err
	}

	rows, _ := s.pool.Query(ctx,
		"SELECT quote_id::text FROM "+table+" WHERE user_id = $1 ORDER BY created_at DESC, seq DESC", userID)

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap("list "+rel.String(), err)
	}

	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

func (s *Store) FilterRelated(ctx context.Context, rel domain.Relation, userID string, quoteIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(quoteIDs) == 0 {
		return out, nil
	}

	table, err := relationTable(rel)
	if err != nil {
		return nil, err
	}

	rows, _ := s.pool.Query(ctx,
		"SELECT quote_id::text FROM "+table+" WHERE user_id = $1 AND quote_id = ANY($2)", userID, quoteIDs)

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap("filter "+rel.String(), err)
	}

	for _, id := range ids {
		out[id] = true
	}

	return out, nil
}

type likeCount struct {
	QuoteID string
	N       int64
}

func (s *Store) LikeCounts(ctx context.Context, quoteIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(quoteIDs))
	if len(quoteIDs) == 0 {
		return out, nil
	}

	for _, id := range quoteIDs {
		out[id] = 0
	}

	rows, _ := s.pool.Query(ctx,
		"SELECT quote_id::text, COUNT(*) FROM quote_likes WHERE quote_id = ANY($1) GROUP BY quote_id", quoteIDs)

	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[likeCount])
	if err != nil {
		return nil, wrap("count likes", err)
	}

	for _, c := range counts {
		out[c.QuoteID] = c.N
	}

	return out, nil
}

func (s *Store) queryQuotes(ctx context.Context, op, query string, args ...any) ([]domain.Quote, error) {
	rows, _ := s.pool.Query(ctx, query, args...)

	quotes, err := pgx.CollectRows(rows, scanQuote)
	if err != nil {
		return nil, wrap(op, err)
	}

	if quotes == nil {
		quotes = []domain.Quote{}
	}

	return quotes, nil
}

func scanQuote(row pgx.CollectableRow) (domain.Quote, error) {
	var (
		q         domain.Quote
		updatedAt *time.Time
	)

	if err := row.Scan(&q.ID, &q.Text, &q.Author, &q.CreatedBy, &q.CreatedAt, &updatedAt); err != nil {
		return domain.Quote{}, err
	}

	q.CreatedAt = q.CreatedAt.UTC()

	if updatedAt != nil {
		t := updatedAt.UTC()
		q.UpdatedAt = &t
	}

	return q, nil
}

// args numbers query parameters as they are added.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func relationTable(rel domain.Relation) (string, error) {
	switch rel {
	case domain.RelationLike:
		return "quote_likes", nil
	case domain.RelationSave:
		return "quote_saves", nil
	default:
		return "", domain.NewValidationErrorWithValue("relation", "unknown relation", int(rel))
	}
}

// notFoundOr maps "no row", malformed ids and vanished foreign keys to
// NotFound, and everything else through wrap.
func notFoundOr(err error, id, op string) error {
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.NewNotFoundError("quote", id)
	case errors.As(err, &pgErr) && (pgErr.Code == codeInvalidText || pgErr.Code == codeForeignKeyViolation):
		return domain.NewNotFoundError("quote", id)
	}

	return wrap(op, err)
}

// wrap reports connection-level failures as domain.ErrUnavailable.
func wrap(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("postgres", err.Error()))
	}

	return fmt.Errorf("%s: %w", op, err)
}

var _ ports.Store = (*Store)(nil)
