package app

import "github.com/jsamuelsen/quote-feed/internal/ports"

// cacheMode is the read/write path chosen once at the start of an operation.
// Operations never re-check mid-sequence; a cache failure after the choice is
// handled by the operation's own fallback rules.
type cacheMode int

const (
	modeDirect cacheMode = iota
	modeCached
)

func (m cacheMode) String() string {
	if m == modeCached {
		return "cached"
	}

	return "direct"
}

func cacheModeFor(c ports.Cache) cacheMode {
	if c != nil && c.Available() {
		return modeCached
	}

	return modeDirect
}

// trimPage cuts a limit+1 result to limit rows and reports whether the
// overflow row existed.
func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}

	return rows, false
}
