package dispatch

import (
	"time"

	"github.com/okian/robodash/internal/domain/command"
	"github.com/okian/robodash/pkg/logger"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTarget sets the actuation endpoint commands are addressed to.
func WithTarget(t command.Target) Option {
	return func(d *Dispatcher) {
		if t.Name != "" {
			d.target = t
		}
	}
}

// WithSpeeds sets the per-direction magnitudes.
func WithSpeeds(s command.Speeds) Option {
	return func(d *Dispatcher) {
		d.speeds = s
	}
}

// WithLimits clamps every command after translation.
func WithLimits(l command.Limits) Option {
	return func(d *Dispatcher) {
		d.limits = l
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithClock replaces time.Now for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}
