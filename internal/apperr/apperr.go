// Package apperr defines the error taxonomy shared by every component of the
// preview and session orchestrator. Components surface only a Kind plus a
// human-readable message; the HTTP layer maps Kind to a transport status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in the orchestrator's error taxonomy.
type Kind string

const (
	Unauthorized     Kind = "unauthorized"
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	BadRequest       Kind = "bad_request"
	Conflict         Kind = "conflict"
	EngineUnavailable Kind = "engine_unavailable"
	GitAuthMissing   Kind = "git_auth_missing"
	GitConflict      Kind = "git_conflict"
	PushFailed       Kind = "push_failed"
	InvalidQuery     Kind = "invalid_query"
	Timeout          Kind = "timeout"
	Cancelled        Kind = "cancelled"
	Internal         Kind = "internal"
)

// Error is the concrete error type returned by components in this module.
type Error struct {
	Kind     Kind
	Message  string
	Resource string // optional: the resource name a failure pertains to (container, db, branch...)
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Resource != "" {
		msg = fmt.Sprintf("%s: %s", e.Resource, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", msg, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", msg, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithResource returns a copy of e with Resource set.
func (e *Error) WithResource(resource string) *Error {
	cp := *e
	cp.Resource = resource
	return &cp
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal for unrecognized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
