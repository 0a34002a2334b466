package auth

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindForbidden
	KindAuthentication
	KindUserInput
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "FORBIDDEN"
	case KindAuthentication:
		return "UNAUTHENTICATED"
	case KindUserInput:
		return "BAD_USER_INPUT"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// Error is returned by Service operations. Message is one of the fixed
// strings in messages.go and is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func unauthenticated(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }
func userInput(msg string) *Error       { return &Error{Kind: KindUserInput, Message: msg} }
func notFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }

func internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is what a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return MsgInternal
}
