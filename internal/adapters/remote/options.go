package remote

import (
	"net/http"
	"time"

	"github.com/okian/robodash/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. It should stay below the poll interval.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the shared transport, e.g. with an httptest client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
