package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Cache operation names accepted by FaultyCache.Fail.
const (
	OpGet         = "Get"
	OpSet         = "Set"
	OpSetIfAbsent = "SetIfAbsent"
	OpDelete      = "Delete"
	OpCounters    = "Counters"
	OpIncr        = "IncrIfPresent"
	OpDecr        = "DecrFloorIfPresent"
	OpSAdd        = "SAdd"
	OpSRem        = "SRem"
)

// FaultyCache wraps a cache and fails selected operations while still
// reporting itself available, which is how a connection that drops
// mid-operation looks to a caller.
type FaultyCache struct {
	ports.Cache

	mu       sync.Mutex
	failures map[string]error
	calls    map[string]int
}

// NewFaultyCache wraps inner.
func NewFaultyCache(inner ports.Cache) *FaultyCache {
	return &FaultyCache{
		Cache:    inner,
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail makes op return err; a nil err clears it.
func (c *FaultyCache) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.failures, op)
		return
	}

	c.failures[op] = err
}

// Calls reports how many times op was invoked, failed or not.
func (c *FaultyCache) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[op]
}

func (c *FaultyCache) enter(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[op]++

	return c.failures[op]
}

func (c *FaultyCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := c.enter(OpGet); err != nil {
		return nil, err
	}

	return c.Cache.Get(ctx, key)
}

func (c *FaultyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.enter(OpSet); err != nil {
		return err
	}

	return c.Cache.Set(ctx, key, value, ttl)
}

func (c *FaultyCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := c.enter(OpSetIfAbsent); err != nil {
		return false, err
	}

	return c.Cache.SetIfAbsent(ctx, key, value, ttl)
}

func (c *FaultyCache) Delete(ctx context.Context, keys ...string) error {
	if err := c.enter(OpDelete); err != nil {
		return err
	}

	return c.Cache.Delete(ctx, keys...)
}

func (c *FaultyCache) Counters(ctx context.Context, keys []string) (map[string]int64, error) {
	if err := c.enter(OpCounters); err != nil {
		return nil, err
	}

	return c.Cache.Counters(ctx, keys)
}

func (c *FaultyCache) IncrIfPresent(ctx context.Context, key string) (int64, bool, error) {
	if err := c.enter(OpIncr); err != nil {
		return 0, false, err
	}

	return c.Cache.IncrIfPresent(ctx, key)
}

func (c *FaultyCache) DecrFloorIfPresent(ctx context.Context, key string) (int64, bool, error) {
	if err := c.enter(OpDecr); err != nil {
		return 0, false, err
	}

	return c.Cache.DecrFloorIfPresent(ctx, key)
}

func (c *FaultyCache) SAdd(ctx context.Context, key, member string, ttl time.Duration) (bool, error) {
	if err := c.enter(OpSAdd); err != nil {
		return false, err
	}

	return c.Cache.SAdd(ctx, key, member, ttl)
}

func (c *FaultyCache) SRem(ctx context.Context, key, member string) (bool, error) {
	if err := c.enter(OpSRem); err != nil {
		return false, err
	}

	return c.Cache.SRem(ctx, key, member)
}

var _ ports.Cache = (*FaultyCache)(nil)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
	err    error
}

// FailWith makes Publish return err after recording the event.
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

func (p *RecordingPublisher) Publish(_ context.Context, event ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

// Events returns a copy of what was published.
func (p *RecordingPublisher) Events() []ports.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]ports.Event(nil), p.events...)
}

var _ ports.EventPublisher = (*RecordingPublisher)(nil)
