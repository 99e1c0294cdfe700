// Package memory is an in-process implementation of the cache port. It backs
// the local profile and tests; it is not shared between replicas.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// ErrUnavailable is returned by every operation while the cache is switched
// off with SetAvailable(false).
var ErrUnavailable = errors.New("memory cache unavailable")

// ErrWrongType mirrors Redis WRONGTYPE.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

type entry struct {
	value   []byte
	set     map[string]struct{}
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Cache is a mutex-guarded map with per-key expiry.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	available atomic.Bool
	now       func() time.Time
}

// New returns an available, empty cache.
func New() *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	c.available.Store(true)

	return c
}

// SetAvailable simulates the connection going away and coming back.
func (c *Cache) SetAvailable(ok bool) {
	c.available.Store(ok)
}

// SetClock replaces the time source; tests use it to expire keys.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func (c *Cache) Available() bool {
	return c.available.Load()
}

func (c *Cache) Open(context.Context) error { return nil }

func (c *Cache) Close() error { return nil }

// Name implements ports.HealthChecker.
func (c *Cache) Name() string { return "cache" }

// Optional marks the cache as non-critical for readiness.
func (c *Cache) Optional() bool { return true }

func (c *Cache) Check(context.Context) error {
	if !c.Available() {
		return ErrUnavailable
	}

	return nil
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0

	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}

	return n
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil {
		return nil, err
	}

	if e == nil {
		return nil, ports.ErrCacheMiss
	}

	if e.set != nil {
		return nil, ErrWrongType
	}

	return append([]byte(nil), e.value...), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Available() {
		return ErrUnavailable
	}

	c.entries[key] = &entry{value: append([]byte(nil), value...), expires: c.expiry(ttl)}

	return nil
}

func (c *Cache) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil {
		return false, err
	}

	if e != nil {
		return false, nil
	}

	c.entries[key] = &entry{value: append([]byte(nil), value...), expires: c.expiry(ttl)}

	return true, nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Available() {
		return ErrUnavailable
	}

	for _, k := range keys {
		delete(c.entries, k)
	}

	return nil
}

func (c *Cache) Counters(_ context.Context, keys []string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Available() {
		return nil, ErrUnavailable
	}

	out := make(map[string]int64, len(keys))

	for _, k := range keys {
		e, _ := c.live(k)
		if e == nil || e.set != nil {
			continue
		}

		if n, err := strconv.ParseInt(string(e.value), 10, 64); err == nil {
			out[k] = n
		}
	}

	return out, nil
}

func (c *Cache) IncrIfPresent(_ context.Context, key string) (int64, bool, error) {
	return c.adjust(key, 1)
}

func (c *Cache) DecrFloorIfPresent(_ context.Context, key string) (int64, bool, error) {
	return c.adjust(key, -1)
}

func (c *Cache) adjust(key string, delta int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil || e == nil {
		return 0, false, err
	}

	if e.set != nil {
		return 0, false, ErrWrongType
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, false, ErrWrongType
	}

	n = max(n+delta, 0)
	e.value = []byte(strconv.FormatInt(n, 10))

	return n, true, nil
}

func (c *Cache) SAdd(_ context.Context, key, member string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil {
		return false, err
	}

	if e == nil {
		e = &entry{set: make(map[string]struct{})}
		c.entries[key] = e
	}

	if e.set == nil {
		return false, ErrWrongType
	}

	e.expires = c.expiry(ttl)

	if _, ok := e.set[member]; ok {
		return false, nil
	}

	e.set[member] = struct{}{}

	return true, nil
}

func (c *Cache) SRem(_ context.Context, key, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil || e == nil {
		return false, err
	}

	if e.set == nil {
		return false, ErrWrongType
	}

	if _, ok := e.set[member]; !ok {
		return false, nil
	}

	delete(e.set, member)

	if len(e.set) == 0 {
		delete(c.entries, key)
	}

	return true, nil
}

// live returns the unexpired entry for key, evicting it if expired.
// Callers hold c.mu.
func (c *Cache) live(key string) (*entry, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}

	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, nil
	}

	return e, nil
}

func (c *Cache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return c.now().Add(ttl)
}

var _ ports.Cache = (*Cache)(nil)
