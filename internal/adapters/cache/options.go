package cache

import (
	"time"

	"github.com/okian/robodash/pkg/logger"
)

// DefaultInterval is the poll cadence used when a subscriber passes none.
const DefaultInterval = 1000 * time.Millisecond

// Option configures a Cache.
type Option func(*Cache)

// WithInterval sets the default poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithKeepStaleOnError selects the failure policy. When true (default) a
// failed refetch keeps the entry in Success with Stale set; when false the
// entry moves to Error while still retaining the last data.
func WithKeepStaleOnError(keep bool) Option {
	return func(c *Cache) {
		c.keepStale = keep
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}
