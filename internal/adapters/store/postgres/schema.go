package postgres

const schema = `
CREATE TABLE IF NOT EXISTS quotes (
	id         UUID PRIMARY KEY,
	text       TEXT NOT NULL,
	author     TEXT,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS quotes_newest ON quotes (created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS quotes_author ON quotes (lower(author));
CREATE INDEX IF NOT EXISTS quotes_creator ON quotes (created_by, created_at DESC);

CREATE TABLE IF NOT EXISTS quote_likes (
	seq        BIGSERIAL,
	user_id    TEXT NOT NULL,
	quote_id   UUID NOT NULL REFERENCES quotes (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (user_id, quote_id)
);
CREATE INDEX IF NOT EXISTS quote_likes_quote ON quote_likes (quote_id);

CREATE TABLE IF NOT EXISTS quote_saves (
	seq        BIGSERIAL,
	user_id    TEXT NOT NULL,
	quote_id   UUID NOT NULL REFERENCES quotes (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (user_id, quote_id)
);
CREATE INDEX IF NOT EXISTS quote_saves_quote ON quote_saves (quote_id);
`
