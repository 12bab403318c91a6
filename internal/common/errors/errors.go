// Package errors provides the standardized error kinds surfaced to funnel
// creators and quiz visitors.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode identifies an error kind across packages and over the wire.
type ErrorCode string

const (
	ErrCodeStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeLimitExceeded        ErrorCode = "LIMIT_EXCEEDED"
	ErrCodeFormat               ErrorCode = "FORMAT_ERROR"
	ErrCodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewStoreUnavailableError wraps a transport or backend failure of the document store.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	details := fmt.Sprintf("operation: %s", operation)
	if err != nil {
		details = fmt.Sprintf("operation: %s, error: %s", operation, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "The funnel store is unavailable, please try again",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLimitExceededError reports the question ceiling of a funnel.
func NewLimitExceededError(current, adding, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeLimitExceeded,
		Message:   fmt.Sprintf("A funnel can hold at most %d questions", limit),
		Details:   fmt.Sprintf("current: %d, adding: %d", current, adding),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]interface{}{
			"current": current,
			"adding":  adding,
			"limit":   limit,
		},
	}
}

func NewFormatError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFormat,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfirmationRequiredError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfirmationRequired,
		Message:   fmt.Sprintf("%s is irreversible and must be confirmed", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidStateError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Inspection Helpers
// ==========================

// CodeOf returns the code of the first StandardError in the chain, or
// ErrCodeInternal when there is none. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
