// Package errs defines the structured error kinds shared by buffer,
// lsprpc and editorsession.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which contract an Error violates. Kind itself
// implements error so callers can write errors.Is(err, errs.Transport).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ReadOnlyViolation Kind = "read_only_violation"
	OutOfBounds       Kind = "out_of_bounds"
	InvalidPosition   Kind = "invalid_position"
	ServerNotReady    Kind = "server_not_ready"
	Transport         Kind = "transport"
	Protocol          Kind = "protocol"
	Decode            Kind = "decode"
	ServerError       Kind = "server_error"
	Cancelled         Kind = "cancelled"
	ResourceExhausted Kind = "resource_exhausted"
)

// Error is the concrete error type returned across the engine. Message
// carries a human-readable description; Cause, when set, is the
// underlying error that triggered this one (unwrap via errors.Unwrap).
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Code is only meaningful for Kind == ServerError, mirroring the
	// JSON-RPC error envelope's numeric code.
	Code int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errs.ReadOnlyViolation) (and similarly for the
// other Kind constants) match regardless of Message/Cause/Code.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ServerErr builds the ServerError kind carrying a JSON-RPC error code.
func ServerErr(code int, message string) *Error {
	return &Error{Kind: ServerError, Message: message, Code: code}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
