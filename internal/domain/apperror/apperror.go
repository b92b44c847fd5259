// Package apperror classifies failures so callers can decide per kind
// whether to abort a request or skip a single item and continue.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the failure category of an Error
type Kind string

const (
	// KindValidation is a missing or blank mandatory input, raised before any remote mutation
	KindValidation Kind = "VALIDATION"

	// KindTransient is a per-item failure (one attachment); the batch continues
	KindTransient Kind = "TRANSIENT"

	// KindRemote is a systemic failure reported by a remote service; the request aborts
	KindRemote Kind = "REMOTE"

	// KindParse is a malformed payload returned by a remote service
	KindParse Kind = "PARSE"

	// KindUnknown is any error that did not pass through this package
	KindUnknown Kind = "UNKNOWN"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Error is a classified error
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "get record"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps err as a per-item failure of op
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Remote creates an error carrying the message returned by a remote service
func Remote(op string, code int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("code=%d", code)
	}
	return &Error{Kind: KindRemote, Op: op, Message: msg}
}

// RemoteErr wraps a transport-level failure of a remote call
func RemoteErr(op string, err error) *Error {
	return &Error{Kind: KindRemote, Op: op, Err: err}
}

// Parse wraps a decoding failure of a remote response
func Parse(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Message: "failed to parse response", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
