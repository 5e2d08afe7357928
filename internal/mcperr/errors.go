// Package mcperr implements the tagged error taxonomy shared by the
// reconciler, supervisor, and facade: every failure that crosses a
// component boundary carries one of a small closed set of kinds so the
// HTTP layer can map it to a status code without string-sniffing.
package mcperr

import (
	"errors"
	"fmt"
)

// Kind is one of the tagged error variants.
type Kind string

const (
	Validation Kind = "validation"
	NotFound   Kind = "not_found"
	Process    Kind = "process"
	Storage    Kind = "storage"
	Network    Kind = "network"
)

// Error is a Kind-tagged error. Its Error() string is always
// "<kind>: <detail>", matching the user-visible format required of every
// failed operation.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error from a detail string.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf builds a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
// Returns nil for a nil err, so callers can wrap an "...; rows.Err()"
// result unconditionally. The return type is error, not *Error — a typed
// nil pointer in an error interface would read as non-nil upstream.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *Error; otherwise it reports Storage, the catch-all for errors this
// taxonomy did not anticipate.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
