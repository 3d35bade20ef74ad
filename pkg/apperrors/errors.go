// Package apperrors defines the typed error taxonomy shared by the
// orchestrator and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of an AppError.
type ErrorCode string

// Generic codes outside the request-facing set. CodeInternal is the one
// internal/httpapi renders (HTTP 500) for scan failures and for any error
// that carries no AppError code.
const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// Request-facing codes from spec.md §4.7. These drive the HTTP status and
// header rendering in internal/httpapi.
const (
	CodeInvalidJSON       ErrorCode = "invalid_json"
	CodeInvalidPayload    ErrorCode = "invalid_payload"
	CodeInvalidMessages   ErrorCode = "invalid_messages"
	CodeInvalidModel      ErrorCode = "invalid_model"
	CodeInvalidPrompt     ErrorCode = "invalid_prompt"
	CodeInputBlocked      ErrorCode = "input_blocked"
	CodeOutputBlocked     ErrorCode = "output_blocked"
	CodeQueueFull         ErrorCode = "queue_full"
	CodeTimeout           ErrorCode = "timeout"
	CodeUpstreamError     ErrorCode = "upstream_error"
	CodeInvalidUpstream   ErrorCode = "invalid_upstream_response"
)

// AppError is a typed error carrying a code classifiable at the HTTP
// boundary without string matching.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
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

// New constructs an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap constructs an AppError with the given code, message, and cause.
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// NewInternalError constructs a CodeInternal AppError.
func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

// NewInternalErrorWithCause constructs a CodeInternal AppError wrapping cause.
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// CodeOf extracts the ErrorCode from err, returning ok=false if err is not
// (or does not wrap) an *AppError.
func CodeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
