package models

import (
	"errors"
	"fmt"
)

// Kind tags an Error so the HTTP layer can map it to a status code in one place.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindDuplicateEmail     Kind = "duplicate_email"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

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

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail, Message: "user already exists"}
	ErrEventFull          = &Error{Kind: KindConflict, Message: "event is fully booked"}
	ErrAlreadyRegistered  = &Error{Kind: KindConflict, Message: "already registered for this event"}
	ErrCapacityTooLow     = &Error{Kind: KindConflict, Message: "capacity cannot be lower than current registrations"}
)

func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func NewUnauthorizedError(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NewRateLimitedError() error {
	return &Error{Kind: KindRateLimited, Message: "rate limit exceeded, try again later"}
}

func NewForbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewInternalError wraps a store or infrastructure failure. The message is
// logged but never returned to clients.
func NewInternalError(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the Kind of err, treating untagged errors as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
