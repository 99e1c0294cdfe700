package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

func TestStore_Unreachable(t *testing.T) {
	s := New(Config{DSN: "postgres://nobody@127.0.0.1:1/quotes", ConnectTimeout: time.Second})

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.True(t, domain.IsUnavailable(s.Check(context.Background())))
	assert.NoError(t, s.Close())
}

func TestStore_BadDSN(t *testing.T) {
	err := New(Config{DSN: "::not a dsn"}).Open(context.Background())
	require.Error(t, err)
	assert.False(t, domain.IsUnavailable(err))
}

func TestNotFoundOr(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{"no rows", pgx.ErrNoRows, true},
		{"invalid uuid", &pgconn.PgError{Code: codeInvalidText}, true},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"other", boom, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := notFoundOr(tt.err, "q1", "op")
			assert.Equal(t, tt.wantNotFound, domain.IsNotFound(err))
		})
	}
}

func TestArgs(t *testing.T) {
	var a args

	assert.Equal(t, "$1", a.add("x"))
	assert.Equal(t, "$2", a.add(3))
	assert.Equal(t, args{"x", 3}, a)
}
