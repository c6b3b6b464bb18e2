// Package errors provides structured error types for depviz.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the worker
//   - Machine-readable error codes in failure replies
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - DUPLICATE_*, UNKNOWN_*, *_NOT_FOUND: Graph and query outcomes
//   - WORKER_*, SUPERSEDED, CANCELLED: Background analysis failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "row %d: unknown type %q", i, row.Type)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Domain errors from depgraph and pathfind map onto codes too
//	code := errors.CodeOf(err)
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/pathfind"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidNodeID Code = "INVALID_NODE_ID"
	ErrCodeInvalidFilter Code = "INVALID_FILTER"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Graph and query outcomes
	ErrCodeDuplicateNode Code = "DUPLICATE_NODE"
	ErrCodeUnknownNode   Code = "UNKNOWN_NODE"
	ErrCodePathNotFound  Code = "PATH_NOT_FOUND"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Background analysis errors
	ErrCodeWorkerFailure Code = "WORKER_FAILURE"
	ErrCodeSuperseded    Code = "SUPERSEDED"
	ErrCodeCancelled     Code = "CANCELLED"
	ErrCodeTimeout       Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// Is reports whether err has the given error code, either through an *Error
// in its chain or through one of the domain sentinels recognized by [CodeOf].
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
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

// Coded is implemented by errors that carry a code without being an
// [*Error], such as failures decoded from a reply message.
type Coded interface {
	error
	ErrorCode() Code
}

// CodeOf classifies err. An explicit *Error or [Coded] code wins;
// otherwise the domain sentinels of depgraph and pathfind and context
// errors are mapped, and anything else is ErrCodeInternal. CodeOf(nil) is "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if c := GetCode(err); c != "" {
		return c
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	switch {
	case errors.Is(err, depgraph.ErrDuplicateNode):
		return ErrCodeDuplicateNode
	case errors.Is(err, depgraph.ErrInvalidNodeID):
		return ErrCodeInvalidNodeID
	case errors.Is(err, pathfind.ErrUnknownNode):
		return ErrCodeUnknownNode
	case errors.Is(err, pathfind.ErrNotFound):
		return ErrCodePathNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	default:
		return ErrCodeInternal
	}
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
