// Package conferr defines the structured error type shared by every stage
// of configuration resolution. Each error carries the kind of failure, the
// dotted key path it applies to, and the identity of the source layer that
// introduced the offending value, so a user can trace a bad override back
// to its origin file or flag.
package conferr

import (
	"errors"
	"fmt"

	"github.com/vk/pybuildgo/internal/confpath"
)

// Kind classifies a configuration error.
type Kind int

const (
	// ParseError indicates a malformed override expression or document.
	ParseError Kind = iota
	// IOError indicates a referenced file is missing or unreadable.
	IOError
	// MergeError indicates an operator incompatible with a key's kind.
	MergeError
	// MissingRequired indicates a required key absent after all layers.
	MissingRequired
	// TypeError indicates a value that does not match its declared kind.
	TypeError
	// InvalidValue indicates an enum or value-range violation.
	InvalidValue
	// ConstraintError indicates a cross-key invariant violation.
	ConstraintError
)

// String returns the human-readable name of the error kind.
func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse error"
	case IOError:
		return "io error"
	case MergeError:
		return "merge error"
	case MissingRequired:
		return "missing required option"
	case TypeError:
		return "type error"
	case InvalidValue:
		return "invalid value"
	case ConstraintError:
		return "constraint violation"
	default:
		return "unknown error"
	}
}

// Error is the structured configuration error. Resolution is
// all-or-nothing: the first Error raised aborts the whole process.
type Error struct {
	Kind   Kind
	Path   confpath.Path
	Source string // layer identity, e.g. "pyproject.toml" or "<cli:2>"
	Msg    string
	Err    error // wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Kind.String()
	if !e.Path.IsEmpty() {
		s += " at " + e.Path.String()
	}
	if e.Source != "" {
		s += " (from " + e.Source + ")"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, path confpath.Path, source, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Path:   path,
		Source: source,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Wrap builds an Error around an underlying cause.
func Wrap(err error, kind Kind, path confpath.Path, source, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Path:   path,
		Source: source,
		Msg:    fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// KindOf returns the Kind of err if it is (or wraps) an Error, and a
// boolean indicating whether it was one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
