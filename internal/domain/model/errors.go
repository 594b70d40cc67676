package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for remote and dispatch failures. *ErrorInfo matches them
// with errors.Is.
var (
	ErrUnreachable    = errors.New("unreachable")
	ErrRemoteRejected = errors.New("remote rejected")
	ErrTimeout        = errors.New("timeout")
	ErrDecodeFailure  = errors.New("decode failure")
	ErrBusy           = errors.New("busy")
	ErrCanceled       = errors.New("canceled")
)

// ErrorKind classifies an ErrorInfo.
type ErrorKind string

// Error kinds.
const (
	KindUnreachable    ErrorKind = "unreachable"
	KindRemoteRejected ErrorKind = "remote_rejected"
	KindTimeout        ErrorKind = "timeout"
	KindDecodeFailure  ErrorKind = "decode_failure"
	KindBusy           ErrorKind = "busy"
	KindCanceled       ErrorKind = "canceled"
)

var kindSentinels = map[ErrorKind]error{
	KindUnreachable:    ErrUnreachable,
	KindRemoteRejected: ErrRemoteRejected,
	KindTimeout:        ErrTimeout,
	KindDecodeFailure:  ErrDecodeFailure,
	KindBusy:           ErrBusy,
	KindCanceled:       ErrCanceled,
}

// ErrorInfo is the typed failure value returned across the remote boundary.
type ErrorInfo struct {
	Kind       ErrorKind
	StatusCode int    // set for KindRemoteRejected
	Op         string // operation that failed, e.g. "remote.fetch"
	Err        error  // underlying cause, may be nil
}

func (e *ErrorInfo) Error() string {
	msg := string(e.Kind)
	if e.Kind == KindRemoteRejected && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ErrorInfo) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *ErrorInfo) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// NewUnreachable reports a transport failure with no response.
func NewUnreachable(op string, err error) *ErrorInfo {
	return &ErrorInfo{Kind: KindUnreachable, Op: op, Err: err}
}

// NewRemoteRejected reports a non-2xx response.
func NewRemoteRejected(op string, statusCode int) *ErrorInfo {
	return &ErrorInfo{Kind: KindRemoteRejected, Op: op, StatusCode: statusCode}
}

// NewTimeout reports a request that exceeded its deadline.
func NewTimeout(op string, err error) *ErrorInfo {
	return &ErrorInfo{Kind: KindTimeout, Op: op, Err: err}
}

// NewDecodeFailure reports a malformed payload.
func NewDecodeFailure(op string, err error) *ErrorInfo {
	return &ErrorInfo{Kind: KindDecodeFailure, Op: op, Err: err}
}

// NewBusy reports a rejected dispatch while another is in flight.
func NewBusy(op string) *ErrorInfo {
	return &ErrorInfo{Kind: KindBusy, Op: op}
}

// NewCanceled reports a request aborted by its caller.
func NewCanceled(op string, err error) *ErrorInfo {
	return &ErrorInfo{Kind: KindCanceled, Op: op, Err: err}
}

// AsErrorInfo extracts an *ErrorInfo from err. Foreign errors are reported
// as KindUnreachable so callers always get a typed value.
func AsErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var ei *ErrorInfo
	if errors.As(err, &ei) {
		return ei
	}
	return NewUnreachable("", err)
}
