package workflow

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindForbidden    ErrorKind = "forbidden"
	KindConflict     ErrorKind = "conflict"
	KindNoOp         ErrorKind = "no_op"
	KindInvalid      ErrorKind = "invalid"
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error is a caller-facing workflow failure. Anything else returned by this
// package is an infrastructure error.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrNoOp         = &Error{Kind: KindNoOp}
	ErrInvalid      = &Error{Kind: KindInvalid}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// KindOf reports the workflow kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newErr(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error     { return newErr(KindNotFound, format, args...) }
func invalidState(format string, args ...any) error { return newErr(KindInvalidState, format, args...) }
func forbidden(format string, args ...any) error    { return newErr(KindForbidden, format, args...) }
func conflict(format string, args ...any) error     { return newErr(KindConflict, format, args...) }
func invalid(format string, args ...any) error      { return newErr(KindInvalid, format, args...) }

var errAlreadyProcessed = &Error{Kind: KindInvalidState, Msg: "request already processed"}

// lookupErr maps a store lookup failure onto NotFound or a wrapped error.
func lookupErr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("%s %d not found", what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
