// Package redis implements the cache port on Redis. A breaker tracks
// consecutive command failures; while it is open Available reports false and
// commands are rejected without touching the network.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/quote-feed/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// ErrBreakerOpen is returned for commands rejected by an open breaker.
var ErrBreakerOpen = errors.New("redis breaker open")

// Command outcomes for the cache operations metric.
const (
	outcomeOK       = "ok"
	outcomeMiss     = "miss"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// Both scripts return -1 when the key does not exist, so an absent counter
// is never created with a wrong base value.
var (
	incrIfPresent = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('INCR', KEYS[1])
`)

	decrFloorIfPresent = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return -1
end
local n = tonumber(current) - 1
if n < 0 then
	n = 0
end
redis.call('SET', KEYS[1], n, 'KEEPTTL')
return n
`)
)

// Config holds connection settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Breaker      BreakerConfig
}

// Cache is a ports.Cache backed by a go-redis client.
type Cache struct {
	client  *goredis.Client
	breaker *Breaker
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New builds the client; no connection is made until Open.
func New(cfg Config, metrics *telemetry.Metrics, logger *slog.Logger) *Cache {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}

	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		client: goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}),
		breaker: NewBreaker(cfg.Breaker),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "cache.redis")),
	}

	c.breaker.OnStateChange(func(from, to State) {
		c.metrics.CacheBreakerState.Set(float64(to))
		c.logger.Warn("redis breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	})

	return c
}

// Open pings the server. A failed ping is returned but leaves the cache
// usable; the breaker takes over from there.
func (c *Cache) Open(ctx context.Context) error {
	if err := c.Check(ctx); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Available reports whether the breaker would let a command through.
func (c *Cache) Available() bool {
	return c.breaker.Ready()
}

// Name implements ports.HealthChecker.
func (c *Cache) Name() string { return "cache" }

// Optional marks the cache as non-critical for readiness.
func (c *Cache) Optional() bool { return true }

// Check pings through the breaker.
func (c *Cache) Check(ctx context.Context) error {
	return c.do(ctx, "ping", func(ctx context.Context) error {
		return c.client.Ping(ctx).Err()
	})
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte

	err := c.do(ctx, "get", func(ctx context.Context) error {
		var err error
		raw, err = c.client.Get(ctx, key).Bytes()

		return err
	})
	if errors.Is(err, goredis.Nil) {
		return nil, ports.ErrCacheMiss
	}

	return raw, err
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.client.Set(ctx, key, value, ttl).Err()
	})
}

func (c *Cache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var stored bool

	err := c.do(ctx, "setnx", func(ctx context.Context) error {
		var err error
		stored, err = c.client.SetNX(ctx, key, value, ttl).Result()

		return err
	})

	return stored, err
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.do(ctx, "del", func(ctx context.Context) error {
		return c.client.Del(ctx, keys...).Err()
	})
}

// Counters uses a single MGET. A value that is not an integer fails the
// whole read.
func (c *Cache) Counters(ctx context.Context, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var values []any

	err := c.do(ctx, "mget", func(ctx context.Context) error {
		var err error
		values, err = c.client.MGet(ctx, keys...).Result()

		return err
	})
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}

		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", keys[i], err)
		}

		out[keys[i]] = n
	}

	return out, nil
}

func (c *Cache) IncrIfPresent(ctx context.Context, key string) (int64, bool, error) {
	return c.runCounterScript(ctx, "incr", incrIfPresent, key)
}

func (c *Cache) DecrFloorIfPresent(ctx context.Context, key string) (int64, bool, error) {
	return c.runCounterScript(ctx, "decr", decrFloorIfPresent, key)
}

func (c *Cache) runCounterScript(ctx context.Context, op string, script *goredis.Script, key string) (int64, bool, error) {
	var n int64

	err := c.do(ctx, op, func(ctx context.Context) error {
		var err error
		n, err = script.Run(ctx, c.client, []string{key}).Int64()

		return err
	})
	if err != nil {
		return 0, false, err
	}

	if n < 0 {
		return 0, false, nil
	}

	return n, true, nil
}

// SAdd adds member and refreshes the set's TTL in one MULTI.
func (c *Cache) SAdd(ctx context.Context, key, member string, ttl time.Duration) (bool, error) {
	var added *goredis.IntCmd

	err := c.do(ctx, "sadd", func(ctx context.Context) error {
		_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			added = pipe.SAdd(ctx, key, member)

			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}

			return nil
		})

		return err
	})
	if err != nil {
		return false, err
	}

	return added.Val() == 1, nil
}

func (c *Cache) SRem(ctx context.Context, key, member string) (bool, error) {
	var removed int64

	err := c.do(ctx, "srem", func(ctx context.Context) error {
		var err error
		removed, err = c.client.SRem(ctx, key, member).Result()

		return err
	})

	return removed == 1, err
}

// do runs fn through the breaker and records the outcome. A miss counts as
// a success; a caller-side cancellation counts as neither.
func (c *Cache) do(ctx context.Context, op string, fn func(context.Context) error) error {
	if !c.breaker.Allow() {
		c.metrics.CacheOps.WithLabelValues(op, outcomeRejected).Inc()
		return ErrBreakerOpen
	}

	err := fn(ctx)

	switch {
	case err == nil:
		c.breaker.RecordSuccess()
		c.metrics.CacheOps.WithLabelValues(op, outcomeOK).Inc()
	case errors.Is(err, goredis.Nil):
		c.breaker.RecordSuccess()
		c.metrics.CacheOps.WithLabelValues(op, outcomeMiss).Inc()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		c.breaker.Release()
		c.metrics.CacheOps.WithLabelValues(op, outcomeError).Inc()
	default:
		c.breaker.RecordFailure()
		c.metrics.CacheOps.WithLabelValues(op, outcomeError).Inc()
	}

	return err
}

var _ ports.Cache = (*Cache)(nil)
