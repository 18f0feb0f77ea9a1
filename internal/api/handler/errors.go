package handler

import (
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest       = apierr.CodeInvalidRequest
	CodeValidationFailed     = apierr.CodeValidationFailed
	CodeSlotNotFound         = apierr.CodeSlotNotFound
	CodeSlotConflict         = apierr.CodeSlotConflict
	CodePartialConfirm       = apierr.CodePartialConfirm
	CodeStoreUnavailable     = apierr.CodeStoreUnavailable
	CodeInvalidIdentity      = apierr.CodeInvalidIdentity
	CodeAdminDisabled        = apierr.CodeAdminDisabled
	CodeInvalidAdminPassword = apierr.CodeInvalidAdminPassword
	CodeResetNotConfirmed    = apierr.CodeResetNotConfirmed
	CodeInternalError        = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return apierr.NewInternalError()
}
