package rules

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected action.
type ErrorKind int

const (
	// ValidationError covers illegal moves, wrong turn and wrong phase.
	ValidationError ErrorKind = iota + 1
	// StateConflictError covers actions that conflict with the current state,
	// such as undo with an empty stack or doubling after the roll.
	StateConflictError
	// ParseError is returned by the position codec for malformed input.
	ParseError
	// InvariantViolation means the engine reached an impossible position.
	InvariantViolation
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case StateConflictError:
		return "state_conflict"
	case ParseError:
		return "parse"
	case InvariantViolation:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is the structured rejection returned by every rules operation.
// A returned Error guarantees the target was left untouched.
type Error struct {
	Kind  ErrorKind
	Op    string // operation that rejected, e.g. "roll"
	Msg   string
	Token string // offending token, ParseError only
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Token != "":
		return fmt.Sprintf("%s: %s (token %q)", e.Op, e.Msg, e.Token)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	default:
		return e.Msg
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrStateConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

// Sentinels for errors.Is.
var (
	ErrValidation    = &Error{Kind: ValidationError}
	ErrStateConflict = &Error{Kind: StateConflictError}
	ErrParse         = &Error{Kind: ParseError}
	ErrInvariant     = &Error{Kind: InvariantViolation}
)

// KindOf returns the kind of err, or 0 if err is not a rules error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

func validationf(op, format string, args ...any) error {
	return &Error{Kind: ValidationError, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func conflictf(op, format string, args ...any) error {
	return &Error{Kind: StateConflictError, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invariantf(format string, args ...any) error {
	return &Error{Kind: InvariantViolation, Op: "invariant", Msg: fmt.Sprintf(format, args...)}
}

// NewParseError builds a ParseError naming the offending token.
func NewParseError(token, format string, args ...any) error {
	return &Error{Kind: ParseError, Op: "parse", Msg: fmt.Sprintf(format, args...), Token: token}
}
