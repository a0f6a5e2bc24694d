// Package errors provides structured error types for bnfold.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library, CLI and HTTP server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - GRAPH_*: The input graph is malformed (duplicate ids, cycles, ...)
//   - FOLD_*: Folding found the model internally inconsistent
//   - INVALID_*: Input validation failures outside the graph itself
//   - INTERNAL_*: Unexpected internal errors
//
// Both GRAPH_* and FOLD_* are hard failures: the pass aborts and returns no
// partial output. A normalization layer that merely cannot be folded is not
// an error; it is reported in the fold summary instead.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDuplicateID, "node %q defined twice", id)
//	if errors.Is(err, errors.ErrCodeDuplicateID) {
//	    // Handle malformed graph
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Graph construction errors
	ErrCodeInvalidNodeID     Code = "GRAPH_INVALID_NODE_ID"
	ErrCodeDuplicateID       Code = "GRAPH_DUPLICATE_ID"
	ErrCodeDanglingReference Code = "GRAPH_DANGLING_REFERENCE"
	ErrCodeCyclic            Code = "GRAPH_CYCLIC"
	ErrCodeInvalidArity      Code = "GRAPH_INVALID_ARITY"
	ErrCodeMissingWeight     Code = "GRAPH_MISSING_WEIGHT"
	ErrCodeUnknownKind       Code = "GRAPH_UNKNOWN_KIND"

	// Folding errors
	ErrCodeShapeMismatch Code = "FOLD_SHAPE_MISMATCH"
	ErrCodeDTypeMismatch Code = "FOLD_DTYPE_MISMATCH"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Resource not found errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

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
// The outermost *Error decides; wrapped inner codes are not consulted.
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

// IsGraphError reports whether err describes a malformed input graph.
func IsGraphError(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidNodeID, ErrCodeDuplicateID, ErrCodeDanglingReference,
		ErrCodeCyclic, ErrCodeInvalidArity, ErrCodeMissingWeight, ErrCodeUnknownKind:
		return true
	}
	return false
}

// IsFoldError reports whether err was raised while rewriting weights.
func IsFoldError(err error) bool {
	switch GetCode(err) {
	case ErrCodeShapeMismatch, ErrCodeDTypeMismatch:
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
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
