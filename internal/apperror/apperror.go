// Package apperror defines the error taxonomy shared by every layer.
//
// Each AppError wraps one sentinel (ErrNotFound, ErrInvalidFilterValue, ...)
// so callers can classify it with errors.Is, and carries a human-readable
// message that is safe to show to API clients. Handlers translate the
// sentinel into an HTTP status; nothing below the handler knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrInvalidFilterValue = errors.New("invalid filter value")
	ErrMissingField       = errors.New("missing required field")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrStoreFailure       = errors.New("store operation failed")
)

type AppError struct {
	Err     error  // sentinel used for classification
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (never shown to clients)
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is(err, ErrStoreFailure) and errors.Is(err, context.Canceled)
// can both succeed on the same value.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidFilterValue reports a filter field whose value cannot be coerced
// to the type the field needs (a number, a date, a string).
func InvalidFilterValue(field, reason string) *AppError {
	return &AppError{
		Err:     ErrInvalidFilterValue,
		Message: fmt.Sprintf("invalid value for filter %q: %s", field, reason),
		Field:   field,
	}
}

// MissingField reports a required input field that was absent or empty.
func MissingField(field string) *AppError {
	return &AppError{
		Err:     ErrMissingField,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

// StoreUnavailable reports that the record store could not be reached.
func StoreUnavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: "record store is unavailable",
		Cause:   cause,
	}
}

// StoreFailed reports a failed store operation. op is a short description
// such as "filtering users" and becomes part of the client message.
func StoreFailed(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreFailure,
		Message: "error " + op,
		Cause:   cause,
	}
}
