package checkout

import (
	"errors"
	"fmt"
)

// Kind classifies a checkout failure.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindConflict
	KindLocked
	KindAuthFailed
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindLocked:
		return "locked"
	case KindAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// Error is a rule violation reported back to the clerk. Data, when set, is
// returned to the client alongside the message.
type Error struct {
	Kind    Kind
	Message string
	Data    any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

func badRequest(format string, args ...any) *Error { return newError(KindBadRequest, format, args...) }
func notFound(format string, args ...any) *Error   { return newError(KindNotFound, format, args...) }
func conflict(format string, args ...any) *Error   { return newError(KindConflict, format, args...) }
func locked(format string, args ...any) *Error     { return newError(KindLocked, format, args...) }
func authFailed(format string, args ...any) *Error { return newError(KindAuthFailed, format, args...) }

// KindOf returns the kind of a checkout error, or 0 for any other error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsKind reports whether err is a checkout error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
