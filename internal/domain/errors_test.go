package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrValidation,
		ErrUnavailable,
		ErrCacheUnavailable,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b,
					"sentinels should be distinct: %v vs %v", a, b)
			}
		}
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name        string
		entity      string
		id          string
		expectedMsg string
	}{
		{"with entity and ID", "quote", "0190", `quote with id "0190" not found`},
		{"entity only", "quotes for author", "", "quotes for author not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNotFoundError(tt.entity, tt.id)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrNotFound)

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.entity, notFound.Entity)
			assert.Equal(t, tt.id, notFound.ID)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationErrorWithValue("limit", "out of range", 500)

	assert.Equal(t, "validation failed for limit: out of range", err.Error())
	require.ErrorIs(t, err, ErrValidation)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 500, validation.Value)

	assert.Equal(t, "validation failed: bad", NewValidationError("", "bad").Error())
}

func TestUnavailableError(t *testing.T) {
	assert.Equal(t, `service "store" unavailable: pool closed`,
		NewUnavailableError("store", "pool closed").Error())
	assert.Equal(t, `service "cache" unavailable`, NewUnavailableError("cache", "").Error())
	assert.ErrorIs(t, NewUnavailableError("store", ""), ErrUnavailable)
}

func TestCacheUnavailableError(t *testing.T) {
	cause := errors.New("connection reset")

	err := NewCacheUnavailableError("like counter", true, cause)

	assert.Equal(t, "cache unavailable during like counter (partially applied): connection reset", err.Error())
	require.ErrorIs(t, err, ErrCacheUnavailable)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnavailable)

	var cacheErr *CacheUnavailableError
	require.ErrorAs(t, fmt.Errorf("toggle: %w", err), &cacheErr)
	assert.True(t, cacheErr.Partial)

	assert.Equal(t, "cache unavailable during get", NewCacheUnavailableError("get", false, nil).Error())
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		isFunc   func(error) bool
		expected bool
	}{
		{"IsNotFound with NotFoundError", NewNotFoundError("quote", "1"), IsNotFound, true},
		{"IsNotFound with wrapped", fmt.Errorf("wrapped: %w", ErrNotFound), IsNotFound, true},
		{"IsNotFound with other error", ErrValidation, IsNotFound, false},
		{"IsNotFound with nil", nil, IsNotFound, false},

		{"IsValidation with ValidationError", NewValidationError("text", "empty"), IsValidation, true},
		{"IsValidation with other error", ErrNotFound, IsValidation, false},

		{"IsUnavailable with UnavailableError", NewUnavailableError("db", "timeout"), IsUnavailable, true},
		{"IsUnavailable with cache error", NewCacheUnavailableError("incr", true, nil), IsUnavailable, false},

		{"IsCacheUnavailable with typed", NewCacheUnavailableError("incr", true, nil), IsCacheUnavailable, true},
		{"IsCacheUnavailable with wrapped sentinel", fmt.Errorf("x: %w", ErrCacheUnavailable), IsCacheUnavailable, true},
		{"IsCacheUnavailable with nil", nil, IsCacheUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.isFunc(tt.err))
		})
	}
}

func TestErrorWrappingChain(t *testing.T) {
	original := NewNotFoundError("quote", "123")
	wrapped := fmt.Errorf("layer2: %w", fmt.Errorf("layer1: %w", original))

	assert.True(t, IsNotFound(wrapped))

	var notFound *NotFoundError
	require.ErrorAs(t, wrapped, &notFound)
	assert.Equal(t, "123", notFound.ID)
}
