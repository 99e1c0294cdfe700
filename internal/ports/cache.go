package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache reads for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the best-effort tier in front of the store. Nothing read from it
// decides correctness; every error may be treated as a miss.
type Cache interface {
	// Available reports whether the connection is currently usable. Callers
	// check it once per operation and pick the cached or direct path.
	Available() bool

	// Get returns ErrCacheMiss for an absent key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent reports whether the value was stored.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error

	// Counters reads integer keys in one round trip. Absent keys are
	// missing from the result.
	Counters(ctx context.Context, keys []string) (map[string]int64, error)

	// IncrIfPresent increments an existing counter. ok is false when the key
	// was absent, in which case nothing is created.
	IncrIfPresent(ctx context.Context, key string) (value int64, ok bool, err error)

	// DecrFloorIfPresent decrements an existing counter, never below zero.
	DecrFloorIfPresent(ctx context.Context, key string) (value int64, ok bool, err error)

	// SAdd adds member to a set and refreshes its TTL. added is false when
	// the member was already present.
	SAdd(ctx context.Context, key, member string, ttl time.Duration) (added bool, err error)
	SRem(ctx context.Context, key, member string) (removed bool, err error)

	Open(ctx context.Context) error
	Close() error
}
