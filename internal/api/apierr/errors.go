package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/rafflegrid/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Slot numbers the error is about, when it names any
	Number    string   `json:"number,omitempty"`
	Confirmed []string `json:"confirmed,omitempty"`
	Rejected  []string `json:"rejected,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeSlotNotFound         = "SLOT_NOT_FOUND"
	CodeSlotConflict         = "SLOT_CONFLICT"
	CodePartialConfirm       = "PARTIAL_CONFIRM"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeInvalidIdentity      = "INVALID_IDENTITY"
	CodeAdminDisabled        = "ADMIN_DISABLED"
	CodeInvalidAdminPassword = "INVALID_ADMIN_PASSWORD"
	CodeResetNotConfirmed    = "RESET_NOT_CONFIRMED"
	CodeInternalError        = "INTERNAL_ERROR"
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

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Structured errors carry the numbers they are about
	var partial *model.PartialConfirmError
	if errors.As(err, &partial) {
		return &httpError{http.StatusConflict, APIError{
			Code:      CodePartialConfirm,
			Message:   partial.Error(),
			Confirmed: numbers(partial.Confirmed),
			Rejected:  numbers(partial.Rejected),
		}}
	}
	var conflict *model.ConflictError
	if errors.As(err, &conflict) {
		return &httpError{http.StatusConflict, APIError{
			Code:    CodeSlotConflict,
			Message: conflict.Error(),
			Number:  string(conflict.Number),
		}}
	}
	var validation *model.ValidationError
	if errors.As(err, &validation) {
		return &httpError{http.StatusBadRequest, APIError{Code: CodeValidationFailed, Message: validation.Error()}}
	}

	switch {
	case errors.Is(err, model.ErrSlotNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeSlotNotFound, Message: "Slot not found"}}
	case errors.Is(err, model.ErrStoreUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{Code: CodeStoreUnavailable, Message: "Slot store is unavailable, try again"}}
	case errors.Is(err, model.ErrInvalidIdentity):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidIdentity, Message: "A valid client identity is required"}}
	case errors.Is(err, model.ErrAdminDisabled):
		return &httpError{http.StatusForbidden, APIError{Code: CodeAdminDisabled, Message: "Admin operations are disabled"}}
	case errors.Is(err, model.ErrInvalidAdminSecret):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidAdminPassword, Message: "Invalid admin password"}}
	case errors.Is(err, model.ErrResetNotConfirmed):
		return &httpError{http.StatusPreconditionFailed, APIError{Code: CodeResetNotConfirmed, Message: "Reset must be explicitly confirmed"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}

func numbers(ns []model.SlotNumber) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}
