// Package apperr carries the error taxonomy shared by every entry point.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	Forbidden
	UpstreamUnavailable
	Inconsistent
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Forbidden:
		return "forbidden"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case Inconsistent:
		return "inconsistent"
	default:
		return "internal_error"
	}
}

// Error is a classified failure. Op names the operation that failed
// (e.g. "exam.LaunchTest"), Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Op + ": " + e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Op + ": " + e.Msg
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil so call sites can wrap unconditionally.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFoundf(op, format string, args ...any) *Error {
	return Newf(NotFound, op, format, args...)
}

func Invalidf(op, format string, args ...any) *Error {
	return Newf(InvalidInput, op, format, args...)
}

// KindOf reports the kind of the outermost *Error in err's chain, or
// Internal when none is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Kind != Internal && e.Err != nil {
			return e.Err.Error()
		}
	}
	return "internal error"
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
