package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrUpgrade      = errors.New("websocket upgrade failed")
	ErrUnknownRoute = errors.New("unknown card")
)

// Wrap prefixes err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind produces "op: kind: cause" and matches both kind and cause.
func WrapKind(op string, kind, cause error) error {
	if cause == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// NewKind produces "op: kind".
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
