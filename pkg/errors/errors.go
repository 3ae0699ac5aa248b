// Package errors provides structured error types for certforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes follow the failure taxonomy of certificate generation:
//   - INVALID_*: Input validation failures
//   - NOT_*: Missing resources or unmet preconditions
//   - ALLOCATION_CONFLICT, DUPLICATE_CERTIFICATE: persistence races
//   - RENDER_FAILURE, UPLOAD_FAILURE: fatal generation failures
//   - ASSET_UNAVAILABLE: locally recovered asset problems
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid event id: %q", id)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeUploadFailure, origErr, "upload %s", key)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource and precondition errors
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeNotEligible Code = "NOT_ELIGIBLE"

	// Generation errors
	ErrCodeAssetUnavailable     Code = "ASSET_UNAVAILABLE"
	ErrCodeAllocationConflict   Code = "ALLOCATION_CONFLICT"
	ErrCodeRenderFailure        Code = "RENDER_FAILURE"
	ErrCodeUploadFailure        Code = "UPLOAD_FAILURE"
	ErrCodeDuplicateCertificate Code = "DUPLICATE_CERTIFICATE"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Transient reports whether err is a failure that may pass on a later
// attempt: a numbering conflict, a network error or a timeout.
func Transient(err error) bool {
	switch GetCode(err) {
	case ErrCodeAllocationConflict, ErrCodeNetwork, ErrCodeTimeout:
		return true
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
