// Package trelliserr defines the error-kind taxonomy shared by every layer of
// the server, from storage drivers up through the LDP and WebDAV protocol
// handlers. A single Kind travels with an error from the point it is raised
// to the HTTP boundary, where it is mapped to a status code exactly once.
package trelliserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and logging severity.
type Kind int

const (
	// Internal is the zero value so an un-wrapped error defaults to 500.
	Internal Kind = iota
	NotFound
	Gone
	BadRequest
	NotAcceptable
	Conflict
	PreconditionFailed
	PreconditionRequired
	Unauthorized
	Forbidden
	MethodNotAllowed
	UnsupportedSyntax
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Gone:
		return "Gone"
	case BadRequest:
		return "BadRequest"
	case NotAcceptable:
		return "NotAcceptable"
	case Conflict:
		return "Conflict"
	case PreconditionFailed:
		return "PreconditionFailed"
	case PreconditionRequired:
		return "PreconditionRequired"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case MethodNotAllowed:
		return "MethodNotAllowed"
	case UnsupportedSyntax:
		return "UnsupportedSyntax"
	default:
		return "Internal"
	}
}

// Error wraps an underlying cause with a Kind, the way storage drivers in
// this module wrap bbolt/kivik/S3 failures before they reach the protocol
// handler.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's kind. Use KindOf for an arbitrary error value.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from any error, defaulting to Internal when the
// error does not carry one — the same default a nil *Error's zero Kind gives.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
