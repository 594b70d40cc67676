package simbackend

import (
	"time"

	"github.com/okian/robodash/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithFailureRate answers a fraction p of GET requests with 503.
func WithFailureRate(p float64) Option {
	return func(s *Server) {
		if p >= 0 && p <= 1 {
			s.failureRate = p
		}
	}
}
