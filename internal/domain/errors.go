package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine readable class of a business failure.
// It is stable across releases and is what clients switch on.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation_error"
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindQuantityOutOfRange ErrorKind = "quantity_out_of_range"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindAlreadyPaid        ErrorKind = "already_paid"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindGateway            ErrorKind = "gateway_error"
	KindInvalidSignature   ErrorKind = "invalid_signature"
	KindInternal           ErrorKind = "internal_error"
)

// Error is a typed business failure carrying a kind, a human readable
// message and optional structured details.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
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

// Is reports whether target is a *Error of the same kind, so that
// errors.Is(err, ErrNotFound) holds for every not_found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy of the error with an additional detail entry.
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Err: e.Err}
}

// NewError builds a business error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a business error of the given kind around a cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Common errors
var (
	ErrNotFound           = NewError(KindNotFound, "record not found")
	ErrForbidden          = NewError(KindForbidden, "access forbidden: you don't own this resource")
	ErrUnauthenticated    = NewError(KindUnauthenticated, "authentication required")
	ErrInvalidToken       = NewError(KindUnauthenticated, "invalid token")
	ErrTokenExpired       = NewError(KindUnauthenticated, "token expired")
	ErrValidation         = NewError(KindValidation, "validation failed")
	ErrConflict           = NewError(KindConflict, "resource already exists")
	ErrInsufficientFunds  = NewError(KindInsufficientFunds, "insufficient balance")
	ErrQuantityOutOfRange = NewError(KindQuantityOutOfRange, "quantity out of range")
	ErrServiceUnavailable = NewError(KindServiceUnavailable, "service unavailable")
	ErrAlreadyPaid        = NewError(KindAlreadyPaid, "order already paid")
	ErrInvalidTransition  = NewError(KindInvalidTransition, "invalid status transition")
	ErrGateway            = NewError(KindGateway, "payment gateway error")
	ErrInvalidSignature   = NewError(KindInvalidSignature, "invalid webhook signature")
)

// ErrDuplicateEvent is returned when a webhook event id was already recorded.
var ErrDuplicateEvent = errors.New("webhook event already processed")

// NewValidationError reports an invalid field.
func NewValidationError(field, message string) *Error {
	return NewError(KindValidation, message).With("field", field)
}

// NewInsufficientFundsError reports the amount required and the balance held.
func NewInsufficientFundsError(required, current Money) *Error {
	return ErrInsufficientFunds.With("required", required).With("current", current)
}

// NewQuantityOutOfRangeError reports the accepted quantity bounds.
func NewQuantityOutOfRangeError(min, max int64) *Error {
	return NewError(KindQuantityOutOfRange, fmt.Sprintf("quantity must be between %d and %d", min, max)).
		With("min", min).
		With("max", max)
}

// KindOf extracts the kind of err, defaulting to internal_error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
