package redis

import (
	"sync"
	"time"
)

// State is the breaker position. The numeric values are exported on the
// breaker gauge.
type State int

const (
	// StateClosed lets every command through.
	StateClosed State = iota

	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen

	// StateOpen rejects commands until Timeout has passed.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the connection breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed commands that opens
	// the breaker.
	MaxFailures int

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// HalfOpenLimit is both the number of concurrent probes and the number
	// of successes needed to close again.
	HalfOpenLimit int
}

// Breaker decides whether the Redis connection is usable. It is what
// Cache.Available reports.
//
// State transitions:
//   - Closed → Open: after MaxFailures consecutive failures
//   - Open → HalfOpen: on the first Allow after Timeout
//   - HalfOpen → Closed: after HalfOpenLimit consecutive successes
//   - HalfOpen → Open: on any failure
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	cfg       BreakerConfig

	onStateChange func(from, to State)
	now           func() time.Time
}

// NewBreaker returns a closed breaker. Zero config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn, called after every transition outside the
// breaker's lock.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onStateChange = fn
}

// Ready reports whether Allow would currently let a command through,
// without claiming a probe slot.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.now().Sub(b.openedAt) >= b.cfg.Timeout
	default:
		return b.probes < b.cfg.HalfOpenLimit
	}
}

// Allow reports whether a command may run. Every true result must be
// followed by RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	var notify func()

	defer func() {
		b.mu.Unlock()

		if notify != nil {
			notify()
		}
	}()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			return false
		}

		notify = b.transitionTo(StateHalfOpen)
		b.probes = 1

		return true

	default:
		if b.probes >= b.cfg.HalfOpenLimit {
			return false
		}

		b.probes++

		return true
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()

	var notify func()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.probes--
		b.successes++

		if b.successes >= b.cfg.HalfOpenLimit {
			notify = b.transitionTo(StateClosed)
		}
	}

	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()

	var notify func()

	switch b.state {
	case StateClosed:
		b.failures++

		if b.failures >= b.cfg.MaxFailures {
			notify = b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		b.probes--
		notify = b.transitionTo(StateOpen)
	}

	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Release returns an allowed command's slot without judging the
// connection, e.g. when the caller gave up.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// transitionTo must be called with b.mu held. The returned func, if any,
// runs the state change callback and must be called after unlocking.
func (b *Breaker) transitionTo(to State) func() {
	if b.state == to {
		return nil
	}

	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	if to == StateOpen {
		b.openedAt = b.now()
		b.probes = 0
	}

	if to == StateClosed {
		b.probes = 0
	}

	fn := b.onStateChange
	if fn == nil {
		return nil
	}

	return func() { fn(from, to) }
}
