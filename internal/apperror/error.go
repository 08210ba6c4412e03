// Package apperror defines the error-kind taxonomy used across the backend.
// Every boundary (HTTP handlers, background sweepers) maps a Go error back to
// one of these kinds exactly once, at the edge, rather than re-deriving an
// HTTP status deep inside a service.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of an application error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuthRequired       Kind = "auth_required"
	KindAuthInvalid        Kind = "auth_invalid"
	KindForbiddenCrossShop Kind = "forbidden_cross_shop"
	KindNotFound           Kind = "not_found"
	KindConflictState      Kind = "conflict_state"
	KindConflictSlot       Kind = "conflict_slot"
	KindConflictIdempotent Kind = "conflict_idempotent"
	KindInsufficientPoints Kind = "insufficient_points"
	KindDuplicateUser      Kind = "duplicate_user"
	KindGatewayUnavailable Kind = "gateway_unavailable"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// HTTPStatus returns the HTTP status code associated with the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindAuthInvalid:
		return http.StatusUnauthorized
	case KindForbiddenCrossShop:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictState, KindConflictSlot, KindConflictIdempotent, KindDuplicateUser:
		return http.StatusConflict
	case KindInsufficientPoints:
		return http.StatusUnprocessableEntity
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client may reasonably retry the request
// unmodified (after a backoff), as opposed to having to change the request.
func (k Kind) Retryable() bool {
	switch k {
	case KindGatewayUnavailable, KindRateLimited, KindConflictSlot:
		return true
	default:
		return false
	}
}

// Error is an application error carrying a Kind, a client-safe message, and
// an optional wrapped cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, preserving cause for logging
// while keeping message client-safe.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, returning (nil, false) if err does not wrap one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal for unrecognized errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
