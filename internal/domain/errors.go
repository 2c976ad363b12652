package domain

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can tell "absent" from "not now" from "already done".
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindForbidden
	KindInvalidArgument
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidState:
		return "InvalidState"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindConflict:
		return "Conflict"
	default:
		return "Internal"
	}
}

// Error is a typed rule violation returned by the engine.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works for every conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
)

var (
	// ErrRecordNotFound is returned by stores when a row does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateAnswer is returned by stores when the answer uniqueness constraint fires.
	ErrDuplicateAnswer = errors.New("duplicate answer record")
	// ErrStaleAnswer is returned by stores when the quiz is no longer ONGOING at the answered index.
	ErrStaleAnswer = errors.New("quiz moved past the answered question")
)

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error { return newError(KindNotFound, format, args...) }

func InvalidState(format string, args ...any) error {
	return newError(KindInvalidState, format, args...)
}

func Forbidden(format string, args ...any) error { return newError(KindForbidden, format, args...) }

func InvalidArgument(format string, args ...any) error {
	return newError(KindInvalidArgument, format, args...)
}

func Conflict(format string, args ...any) error { return newError(KindConflict, format, args...) }

// KindOf returns the kind of err. Anything that is not an *Error is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindInternal.
func ParseKind(name string) Kind {
	for _, k := range []Kind{KindNotFound, KindInvalidState, KindForbidden, KindInvalidArgument, KindConflict} {
		if k.String() == name {
			return k
		}
	}
	return KindInternal
}
