package remote

import "errors"

// Sentinel errors for client construction and request building.
var (
	ErrInvalidBaseURL  = errors.New("invalid base url")
	ErrUnsupportedKind = errors.New("unsupported resource kind")
)
