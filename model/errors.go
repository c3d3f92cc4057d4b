package model

import "fmt"

// Request-time error codes. These are returned as tagged values from the
// engine, never thrown across its boundary.
const (
	ErrBadRequest             = "BAD_REQUEST"
	ErrUnauthorized           = "UNAUTHORIZED"
	ErrPermissionDenied       = "PERMISSION_DENIED"
	ErrRecordNotFound         = "RECORD_NOT_FOUND"
	ErrTableNotFound          = "TABLE_NOT_FOUND"
	ErrUnknownTransition      = "UNKNOWN_TRANSITION"
	ErrInvalidTransition      = "INVALID_TRANSITION"
	ErrConditionNotMet        = "CONDITION_NOT_MET"
	ErrConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrStorageFailure         = "STORAGE_FAILURE"
	ErrInternalError          = "INTERNAL_ERROR"
)

// ErrValidationError is the configuration-time error code. A definition that
// fails validation is unusable; the engine refuses to serve against it.
const ErrValidationError = "VALIDATION_ERROR"

// ErrorEnvelope is the standard error shape returned by the engine and
// serialized by the transport layer. It implements the error interface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind returns the error code of err when it is an *ErrorEnvelope, and
// INTERNAL_ERROR otherwise.
func Kind(err error) string {
	if ee, ok := err.(*ErrorEnvelope); ok {
		return ee.Code
	}
	return ErrInternalError
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewPermissionDeniedError returns a PERMISSION_DENIED error.
func NewPermissionDeniedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrPermissionDenied, Message: msg}
}

// NewRecordNotFoundError returns a RECORD_NOT_FOUND error.
func NewRecordNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrRecordNotFound, Message: msg}
}

// NewTableNotFoundError returns a TABLE_NOT_FOUND error.
func NewTableNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTableNotFound, Message: msg}
}

// NewUnknownTransitionError returns an UNKNOWN_TRANSITION error.
func NewUnknownTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnknownTransition, Message: msg}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTransition, Message: msg}
}

// NewConditionNotMetError returns a CONDITION_NOT_MET error.
func NewConditionNotMetError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConditionNotMet, Message: msg}
}

// NewConcurrentModificationError returns a CONCURRENT_MODIFICATION error.
// Callers are expected to re-read the record and retry; the engine itself
// never retries.
func NewConcurrentModificationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConcurrentModification, Message: msg}
}

// NewStorageFailureError wraps an underlying storage error. It indicates a
// data-integrity risk and must not be silently retried.
func NewStorageFailureError(err error) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrStorageFailure, Message: err.Error()}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInternalError, Message: "An unexpected error occurred"}
}
