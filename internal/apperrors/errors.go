package apperrors

import (
	"errors"
	"fmt"
)

// Repository and token codec sentinels
// They never reach the client as is: the auth service turns them into *Error with a safe message
var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrTokenNotFound = errors.New("token not found")

	ErrTokenEmpty       = errors.New("token is empty")
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenUnsupported = errors.New("token is unsupported")
)

// Kind of failure, the HTTP layer maps it to status code
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidInput
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Typed service error
// Message is safe to show to the client, Err keeps the cause for logs and errors.Is
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

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string, err error) error {
	return Wrap(KindUnauthenticated, message, err)
}

func InvalidInput(message string) error {
	return New(KindInvalidInput, message)
}

func NotFound(message string) error {
	return New(KindNotFound, message)
}

func Upstream(message string, err error) error {
	return Wrap(KindUpstream, message, err)
}

// Internal wraps err as internal failure carrying the original message
// Already typed errors are returned untouched so their kind survives
func Internal(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf returns kind of the typed error or KindInternal for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client safe message
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
