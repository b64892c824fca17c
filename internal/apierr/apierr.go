// Package apierr defines the error taxonomy shared across the tool.
// Library and SDK failures are wrapped at each boundary into one of these
// kinds with the original message preserved.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for CLI reporting and exit-code selection.
type Kind int

const (
	// KindAPI is the catch-all for Tableau API failures.
	KindAPI Kind = iota
	KindAuthentication
	KindConfiguration
	KindConnection
	KindMetadata
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication error"
	case KindConfiguration:
		return "configuration error"
	case KindConnection:
		return "connection error"
	case KindMetadata:
		return "metadata error"
	case KindStorage:
		return "storage error"
	default:
		return "API error"
	}
}

// Error carries a kind, a message, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
// A nil cause returns nil so call sites can wrap unconditionally.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindAPI when err is not a taxonomy error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindAPI
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
