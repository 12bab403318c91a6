// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the status returned at the API boundary.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case ErrCodeLimitExceeded, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeFormat:
		return http.StatusBadRequest
	case ErrCodeConfirmationRequired:
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse converts any error into its HTTP status and body.
func ToResponse(err error) (int, ErrorResponse) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)
	return status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      stdErr.Code,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Metadata:  stdErr.Metadata,
	}
}
