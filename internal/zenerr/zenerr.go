// Package zenerr defines Zen's error taxonomy: a small set of kinds the
// CLI and RPC layers can switch on, instead of string-matching messages.
package zenerr

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories spec'd for Zen.
type Kind int

const (
	InputInvalid Kind = iota
	NotFound
	Conflict
	FilesystemError
	SubprocessError
	SchemaError
)

func (k Kind) String() string {
	switch k {
	case InputInvalid:
		return "input_invalid"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case FilesystemError:
		return "filesystem_error"
	case SubprocessError:
		return "subprocess_error"
	case SchemaError:
		return "schema_error"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause under message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is lets errors.Is(err, zenerr.Sentinel(zenerr.NotFound)) work by
// comparing Kind when the target is also a *Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to InputInvalid if err
// isn't a *Error (the CLI still needs to pick some exit code).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return InputInvalid, false
}

// Sentinel returns a zero-message *Error of the given kind, usable as an
// errors.Is target: `errors.Is(err, zenerr.Sentinel(zenerr.NotFound))`.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
