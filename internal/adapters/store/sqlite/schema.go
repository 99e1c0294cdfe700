package sqlite

// Timestamps are unix microseconds, the precision domain.NormalizeTime
// keeps. Relation tables are ordered by (created_at, rowid) so two toggles
// in the same microsecond still list in insertion order.
const schema = `
CREATE TABLE IF NOT EXISTS quotes (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	author     TEXT,
	created_by TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS quotes_newest ON quotes (created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS quotes_author ON quotes (lower(author));
CREATE INDEX IF NOT EXISTS quotes_creator ON quotes (created_by, created_at DESC);

CREATE TABLE IF NOT EXISTS quote_likes (
	user_id    TEXT NOT NULL,
	quote_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, quote_id)
);
CREATE INDEX IF NOT EXISTS quote_likes_quote ON quote_likes (quote_id);

CREATE TABLE IF NOT EXISTS quote_saves (
	user_id    TEXT NOT NULL,
	quote_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, quote_id)
);
CREATE INDEX IF NOT EXISTS quote_saves_quote ON quote_saves (quote_id);
`
