// Package apperr defines application-level (API boundary) errors.
//
// These are distinct from cell-value errors (value.ExcelError), which are
// spreadsheet data, not Go errors. apperr is reserved for invalid
// arguments, unknown sheets, malformed formulas, and similar boundary
// failures returned to callers of the public façade.
package apperr

import (
	"errors"
	"fmt"
)

// Code mirrors a small gRPC-style subset of status codes, following the
// same convention the teacher codebase used for its application errors.
type Code int

const (
	OK Code = iota
	Unknown
	InvalidArgument
	NotFound
	AlreadyExists
	ResourceExhausted
	FailedPrecondition
	OutOfRange
	Unimplemented
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case ResourceExhausted:
		return "ResourceExhausted"
	case FailedPrecondition:
		return "FailedPrecondition"
	case OutOfRange:
		return "OutOfRange"
	case Unimplemented:
		return "Unimplemented"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is an API-boundary error carrying a status code and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error with the given code, message, and cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, and
// Unknown otherwise.
func CodeOf(err error) Code {
	var e *Error
	if err == nil {
		return OK
	}
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
