// Package apperr defines the typed business errors shared by the workflow
// services and the HTTP status each one maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business error.
type Kind int

const (
	// KindUnknown is any error that carries no classification.
	KindUnknown Kind = iota
	// KindValidation covers malformed or missing input.
	KindValidation
	// KindNotFound covers references to absent entities.
	KindNotFound
	// KindStateConflict covers operations illegal in the entity's current
	// state (adding a procedure to a finalized plan, double completion).
	KindStateConflict
	// KindInsufficientStock covers stock movements that would drive a
	// material balance negative.
	KindInsufficientStock
	// KindInvalidAmount covers non-positive payment amounts.
	KindInvalidAmount
	// KindOverpayment covers payments rejected by the overpayment policy.
	KindOverpayment
	// KindTransient covers store-level failures (timeouts, serialization
	// conflicts) that are safe to retry.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidAmount:
		return "invalid_amount"
	case KindOverpayment:
		return "overpayment"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified business error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidAmount:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict, KindInsufficientStock:
		return http.StatusConflict
	case KindOverpayment:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
