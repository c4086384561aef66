package common

import (
	"context"
	"errors"
	"fmt"
)

// Error codes in the pipeline taxonomy. Stable strings: they travel through
// the API layer and show up in job error messages.
const (
	CodeDecodeError        = "DECODE_ERROR"        // document unreadable
	CodeRecognitionTimeout = "RECOGNITION_TIMEOUT" // OCR/model call exceeded its budget
	CodeModelUnavailable   = "MODEL_UNAVAILABLE"   // fallback extractor unreachable (degraded, not fatal)
	CodeValidation         = "VALIDATION_ERROR"    // caller error, rejected without mutating state
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is the application error carried across layers.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func DecodeError(message string, cause error) *AppError {
	return NewAppError(CodeDecodeError, message, cause)
}

func RecognitionTimeout(message string, cause error) *AppError {
	return NewAppError(CodeRecognitionTimeout, message, cause)
}

func ModelUnavailable(message string, cause error) *AppError {
	return NewAppError(CodeModelUnavailable, message, cause)
}

func ValidationError(format string, args ...any) *AppError {
	return NewAppError(CodeValidation, fmt.Sprintf(format, args...), nil)
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, message, nil)
}

func InternalError(message string, cause error) *AppError {
	return NewAppError(CodeInternal, message, cause)
}

// CodeOf extracts the taxonomy code from err, mapping context deadline
// exhaustion to RECOGNITION_TIMEOUT. Unknown errors are INTERNAL_ERROR.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeRecognitionTimeout
	}
	return CodeInternal
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
