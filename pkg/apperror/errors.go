package apperror

import (
	"fmt"
	"net/http"
)

// Stable error codes surfaced to API callers.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeDuplicateID     = "DUPLICATE_ID"
	CodeNotFound        = "NOT_FOUND"
	CodeAttemptNotFound = "ATTEMPT_NOT_FOUND"
	CodePaymentFailed   = "PAYMENT_FAILED"
	CodeInvalidState    = "INVALID_STATE"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternal        = "INTERNAL_ERROR"
)

// FieldViolation describes one rejected input field.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	Details    []FieldViolation `json:"details,omitempty"`
	HTTPStatus int              `json:"-"`
	Err        error            `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Input (VALIDATION) ----

// Validation returns a VALIDATION_ERROR with an optional list of field violations.
func Validation(message string, details ...FieldViolation) *AppError {
	e := New(CodeValidation, message, http.StatusBadRequest)
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// ErrPayloadTooLarge is returned when a request body exceeds the size limit.
func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Invoices ----

func ErrDuplicateID(entity, id string) *AppError {
	return New(CodeDuplicateID, fmt.Sprintf("%s with id %q already exists", entity, id), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

// ---- Payment attempts ----

func ErrAttemptNotFound() *AppError {
	return New(CodeAttemptNotFound, "Payment attempt not found", http.StatusNotFound)
}

func ErrPaymentFailed() *AppError {
	return New(CodePaymentFailed, "Payment was declined", http.StatusPaymentRequired)
}

// ---- Rate Limiting ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure ----

// InternalError wraps an internal error as an INTERNAL_ERROR.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
