package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/geoseek/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeMissingFields   = "MISSING_FIELDS"
	CodeMissingPassword = "MISSING_PASSWORD"
	CodeMissingDuration = "MISSING_DURATION"
	CodeInvalidFields   = "INVALID_FIELDS"
	CodeSessionExists   = "SESSION_EXISTS"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSummaryNotFound = "SUMMARY_NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors. Create failures, including duplicates, are all 400.
	switch {
	case errors.Is(err, model.ErrMissingFields):
		return &httpError{http.StatusBadRequest, APIError{CodeMissingFields, "Missing required fields"}}
	case errors.Is(err, model.ErrMissingPassword):
		return &httpError{http.StatusBadRequest, APIError{CodeMissingPassword, "Missing password"}}
	case errors.Is(err, model.ErrMissingDuration):
		return &httpError{http.StatusBadRequest, APIError{CodeMissingDuration, "Missing duration"}}
	case errors.Is(err, model.ErrInvalidFields):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidFields, "Invalid fields"}}
	case errors.Is(err, model.ErrSessionExists):
		return &httpError{http.StatusBadRequest, APIError{CodeSessionExists, "Session already exists"}}
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrSummaryNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSummaryNotFound, "Session summary not found"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
