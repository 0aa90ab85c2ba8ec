package application

import (
	"errors"
	"fmt"
)

// Kind classifies service failures; the HTTP boundary maps it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by every Service method that fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func badRequest(msg string) error   { return newError(KindBadRequest, msg, nil) }
func unauthorized(msg string) error { return newError(KindUnauthorized, msg, nil) }
func notFound(msg string) error     { return newError(KindNotFound, msg, nil) }
func conflict(msg string) error     { return newError(KindConflict, msg, nil) }
func internal(msg string, err error) error {
	return newError(KindInternal, msg, err)
}

// KindOf returns the kind carried by err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
