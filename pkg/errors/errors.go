// Package errors provides structured error types for nvlviz.
//
// Errors carry a machine-readable [Code] next to a human-readable message so
// the CLI, the HTTP server and library callers can branch on the failure class
// without parsing strings.
//
// # Error Codes
//
// Codes follow a coarse naming convention:
//   - INVALID_*: input, graph or option validation failures
//   - NOT_FOUND: a stored graph or file does not exist
//   - ENGINE_ERROR: the visualization engine could not be constructed or driven
//   - NETWORK_ERROR / TIMEOUT: Neo4j, Redis, MongoDB or browser connectivity
//   - INTERNAL_ERROR: anything unexpected
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidGraph, "relationship %s references unknown node %s", id, to)
//	if errors.Is(err, errors.ErrCodeInvalidGraph) {
//	    // reject the upload
//	}
//
//	err := errors.Wrap(errors.ErrCodeEngine, cause, "construct engine")
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
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidOption Code = "INVALID_OPTION"
	ErrCodeInvalidColor  Code = "INVALID_COLOR"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidName   Code = "INVALID_NAME"

	// Rendering limits
	ErrCodeTooManyNodes     Code = "TOO_MANY_NODES"
	ErrCodeUnsupportedField Code = "UNSUPPORTED_FIELD"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Engine errors
	ErrCodeEngine Code = "ENGINE_ERROR"

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

// HTTPStatus maps an error code to the HTTP status the server responds with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidGraph, ErrCodeInvalidOption,
		ErrCodeInvalidColor, ErrCodeInvalidFormat, ErrCodeInvalidPath,
		ErrCodeInvalidName, ErrCodeUnsupportedField:
		return 400
	case ErrCodeNotFound, ErrCodeFileNotFound:
		return 404
	case ErrCodeTooManyNodes:
		return 413
	case ErrCodeNetwork, ErrCodeEngine:
		return 502
	case ErrCodeTimeout:
		return 504
	default:
		return 500
	}
}
