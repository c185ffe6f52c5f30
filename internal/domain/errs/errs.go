// Package errs holds the error taxonomy shared by the workflows and the transport layer.
package errs

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuthFailure
	KindNotFound
	KindInvalidInput
	KindInvalidState
	KindRateLimited
	KindExpired
	KindUpstreamFailure
	KindForbidden
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindAuthFailure:     "auth_failure",
	KindNotFound:        "not_found",
	KindInvalidInput:    "invalid_input",
	KindInvalidState:    "invalid_state",
	KindRateLimited:     "rate_limited",
	KindExpired:         "expired",
	KindUpstreamFailure: "upstream_failure",
	KindForbidden:       "forbidden",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether a caller may retry the operation. Only upstream
// failures qualify, and only the transport layer decides to do so.
func (k Kind) Retryable() bool {
	return k == KindUpstreamFailure
}

// Error is a classified failure with a human readable message.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is set for KindRateLimited.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func AuthFailure(format string, args ...any) *Error {
	return New(KindAuthFailure, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func Expired(format string, args ...any) *Error {
	return New(KindExpired, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Upstream(err error, format string, args ...any) *Error {
	return Wrap(KindUpstreamFailure, err, format, args...)
}

func RateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	e := New(KindRateLimited, format, args...)
	e.RetryAfter = retryAfter
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user facing message of err. Unclassified errors get a
// generic message so internal details do not leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// RetryAfterOf returns the wait hint carried by a rate limited error.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
