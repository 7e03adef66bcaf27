// Package errors defines stable error codes for the tool's fatal failure
// modes. Package evaluation errors inside a snapshot are data, not errors;
// they never appear here.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all fatal failure modes
type ErrorCode string

const (
	// StreamMalformed indicates a snapshot record that cannot be decoded
	StreamMalformed ErrorCode = "STREAM_MALFORMED"
	// DuplicatePackage indicates the same package key appeared twice in one snapshot stream
	DuplicatePackage ErrorCode = "DUPLICATE_PACKAGE"
	// IOError indicates a failure reading an input source
	IOError ErrorCode = "IO_ERROR"
	// ExtractionFailed indicates the live graph-extraction command failed
	ExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// ConfigInvalid indicates a bad configuration or universe pattern
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// NewGraphErrors indicates the change introduced new package evaluation errors
	NewGraphErrors ErrorCode = "NEW_GRAPH_ERRORS"
	// DanglingEdges indicates the change introduced dangling dependency edges
	DanglingEdges ErrorCode = "DANGLING_EDGES"
	// CacheError indicates a failure of the extraction cache
	CacheError ErrorCode = "CACHE_ERROR"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Error carries an error code alongside a message and optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// New creates an Error with the given code and message.
func New(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the error code of err, or InternalError for plain errors.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return InternalError
}
