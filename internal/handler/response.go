package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// WHY HELPERS?
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers are cleaner and more consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "invalid_filter_value", "message": "invalid value for filter \"ageRange.min\": ..."}
//
// Clients can switch on "error" and show "message" as-is, whatever the status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/user-segments/internal/apperror"
)

// maxBodyBytes caps request bodies. Filter sets are small; anything larger
// is a mistake or abuse.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input field at fault, when known
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once Encode
// calls w.Write, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror values and knows nothing about HTTP.
// This is the one place where those sentinels become status codes:
//
//	ErrInvalidFilterValue → 400 invalid_filter_value
//	ErrMissingField       → 400 missing_required_field
//	ErrValidation         → 400 validation_error
//	ErrNotFound           → 404 not_found
//	ErrStoreUnavailable   → 503 store_unavailable
//	ErrStoreFailure       → 500 internal_error
//
// errors.Is walks the whole chain, including both branches of
// AppError.Unwrap, so a wrapped AppError still classifies correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrInvalidFilterValue):
			status = http.StatusBadRequest // 400
			errorType = "invalid_filter_value"
		case errors.Is(err, apperror.ErrMissingField):
			status = http.StatusBadRequest // 400
			errorType = "missing_required_field"
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrStoreUnavailable):
			status = http.StatusServiceUnavailable // 503
			errorType = "store_unavailable"
		}

		// The message of a store failure ("error filtering users") is safe to
		// show; its Cause is not, and never leaves the server.
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error. NEVER expose internal error details to the client:
	// the raw message might contain SQL, file paths or connection strings.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst. A malformed or oversized
// body becomes a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
