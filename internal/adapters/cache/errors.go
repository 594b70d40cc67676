package cache

import "errors"

// ErrClosed is recorded on handles obtained from a closed cache.
var ErrClosed = errors.New("cache closed")
