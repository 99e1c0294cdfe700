// Package sqlite is the embedded store used by the local profile and the
// HTTP tests. It uses the pure-Go modernc driver, so no cgo is needed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

const quoteColumns = "id, text, author, created_by, created_at, updated_at"

// Store implements ports.Store on a single SQLite connection. One
// connection keeps ":memory:" databases shared and serializes writers.
type Store struct {
	db *sql.DB
}

// New opens the database handle. DSN is a modernc DSN such as
// "file:quote-feed.db" or ":memory:".
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}

	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// Open sets connection pragmas and creates the schema.
func (s *Store) Open(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "store" }

func (s *Store) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE id = ?", id)

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	if err != nil {
		return domain.Quote{}, fmt.Errorf("get quote %s: %w", id, err)
	}

	return q, nil
}

func (s *Store) ListQuotes(ctx context.Context, filter domain.ListFilter) ([]domain.Quote, error) {
	var (
		where []string
		args  []any
	)

	if filter.Author != nil {
		where = append(where, "lower(author) = lower(?)")
		args = append(args, *filter.Author)
	}

	if filter.Cursor != "" {
		var createdAt int64

		err := s.db.QueryRowContext(ctx, "SELECT created_at FROM quotes WHERE id = ?", filter.Cursor).Scan(&createdAt)

		switch {
		case err == nil:
			where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
			args = append(args, createdAt, createdAt, filter.Cursor)
		case errors.Is(err, sql.ErrNoRows):
			where = append(where, "id < ?")
			args = append(args, filter.Cursor)
		default:
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
	}

	query := "SELECT " + quoteColumns + " FROM quotes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	return s.queryQuotes(ctx, "list quotes", query, args...)
}

func (s *Store) RandomQuote(ctx context.Context) (domain.Quote, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+quoteColumns+" FROM quotes ORDER BY random() LIMIT 1")

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quote{}, domain.NewNotFoundError("quote", "")
	}

	if err != nil {
		return domain.Quote{}, fmt.Errorf("random quote: %w", err)
	}

	return q, nil
}

func (s *Store) ListQuotesByIDs(ctx context.Context, ids []string) ([]domain.Quote, error) {
	if len(ids) == 0 {
		return []domain.Quote{}, nil
	}

	query := "SELECT " + quoteColumns + " FROM quotes WHERE id IN (" + placeholders(len(ids)) + ")"

	return s.queryQuotes(ctx, "list quotes by id", query, anySlice(ids)...)
}

func (s *Store) ListQuotesByCreator(ctx context.Context, userID string) ([]domain.Quote, error) {
	return s.queryQuotes(ctx, "list quotes by creator",
		"SELECT "+quoteColumns+" FROM quotes WHERE created_by = ? ORDER BY created_at DESC, id DESC", userID)
}

func (s *Store) ListPopular(ctx context.Context, offset, limit int) ([]domain.Quote, error) {
	return s.queryQuotes(ctx, "list popular quotes", `
		SELECT q.id, q.text, q.author, q.created_by, q.created_at, q.updated_at
		FROM quotes q
		LEFT JOIN (SELECT quote_id, COUNT(*) AS n FROM quote_likes GROUP BY quote_id) l ON l.quote_id = q.id
		ORDER BY COALESCE(l.n, 0) DESC, q.created_at DESC, q.id DESC
		LIMIT ? OFFSET ?`, limit, offset)
}

func (s *Store) CreateQuote(ctx context.Context, q domain.Quote) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO quotes ("+quoteColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		q.ID, q.Text, q.Author, q.CreatedBy, q.CreatedAt.UnixMicro(), microsOrNil(q.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create quote: %w", err)
	}

	return nil
}

func (s *Store) UpdateQuote(ctx context.Context, owner, id string, patch domain.QuotePatch, at time.Time) (domain.Quote, error) {
	var author *string
	if patch.Author != nil && *patch.Author != "" {
		author = patch.Author
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE quotes SET
			text = COALESCE(?, text),
			author = CASE WHEN ? THEN ? ELSE author END,
			updated_at = ?
		WHERE id = ? AND created_by = ?
		RETURNING `+quoteColumns,
		patch.Text, patch.Author != nil, author, domain.NormalizeTime(at).UnixMicro(), id, owner)

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	if err != nil {
		return domain.Quote{}, fmt.Errorf("update quote %s: %w", id, err)
	}

	return q, nil
}

// DeleteQuote removes the quote and its likes and saves in one transaction.
func (s *Store) DeleteQuote(ctx context.Context, owner, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM quotes WHERE id = ? AND created_by = ?", id, owner)
	if err != nil {
		return fmt.Errorf("delete quote %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quote %s: %w", id, err)
	}

	if n == 0 {
		return domain.NewNotFoundError("quote", id)
	}

	for _, table := range []string{"quote_likes", "quote_saves"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE quote_id = ?", id); err != nil {
			return fmt.Errorf("delete %s of %s: %w", table, id, err)
		}
	}

	return tx.Commit()
}

func (s *Store) AddRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	table, err := relationTable(rel)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin %s: %w", rel, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM quotes WHERE id = ?", quoteID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.NewNotFoundError("quote", quoteID)
		}

		return false, fmt.Errorf("check quote %s: %w", quoteID, err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO "+table+" (user_id, quote_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		userID, quoteID, domain.Now().UnixMicro())
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", rel, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", rel, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s: %w", rel, err)
	}

	return n == 1, nil
}

func (s *Store) RemoveRelation(ctx context.Context, rel domain.Relation, userID, quoteID string) (bool, error) {
	table, err := relationTable(rel)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ? AND quote_id = ?", userID, quoteID)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", rel, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", rel, err)
	}

	return n == 1, nil
}

func (s *Store) RelatedQuoteIDs(ctx context.Context, rel domain.Relation, userID string) ([]string, error) {
	table, err := relationTable(rel)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT quote_id FROM "+table+" WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel, err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
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

	args := append([]any{userID}, anySlice(quoteIDs)...)

	rows, err := s.db.QueryContext(ctx,
		"SELECT quote_id FROM "+table+" WHERE user_id = ? AND quote_id IN ("+placeholders(len(quoteIDs))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", rel, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel, err)
		}

		out[id] = true
	}

	return out, rows.Err()
}

func (s *Store) LikeCounts(ctx context.Context, quoteIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(quoteIDs))
	if len(quoteIDs) == 0 {
		return out, nil
	}

	for _, id := range quoteIDs {
		out[id] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT quote_id, COUNT(*) FROM quote_likes WHERE quote_id IN ("+placeholders(len(quoteIDs))+") GROUP BY quote_id",
		anySlice(quoteIDs)...)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int64
		)

		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan like count: %w", err)
		}

		out[id] = n
	}

	return out, rows.Err()
}

func (s *Store) queryQuotes(ctx context.Context, op, query string, args ...any) ([]domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	quotes := []domain.Quote{}

	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		quotes = append(quotes, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return quotes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuote(row scanner) (domain.Quote, error) {
	var (
		q         domain.Quote
		author    sql.NullString
		createdBy sql.NullString
		createdAt int64
		updatedAt sql.NullInt64
	)

	if err := row.Scan(&q.ID, &q.Text, &author, &createdBy, &createdAt, &updatedAt); err != nil {
		return domain.Quote{}, err
	}

	if author.Valid {
		q.Author = &author.String
	}

	if createdBy.Valid {
		q.CreatedBy = &createdBy.String
	}

	q.CreatedAt = time.UnixMicro(createdAt).UTC()

	if updatedAt.Valid {
		t := time.UnixMicro(updatedAt.Int64).UTC()
		q.UpdatedAt = &t
	}

	return q, nil
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}

	return out
}

func microsOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UnixMicro()
}

var _ ports.Store = (*Store)(nil)
