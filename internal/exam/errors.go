// internal/exam/errors.go
package exam

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why an exam action failed.
type ErrorCode string

const (
	// ErrCodeUnresolved: the identifier maps to no known question. Run a full
	// status scan first when addressing questions by position.
	ErrCodeUnresolved ErrorCode = "QUESTION_UNRESOLVED"
	// ErrCodeNotFound: the container, option, click target, frame or blank
	// fields are absent from the page.
	ErrCodeNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	// ErrCodeCountMismatch: the number of answers differs from the number of
	// blanks on the page.
	ErrCodeCountMismatch ErrorCode = "BLANK_COUNT_MISMATCH"
	// ErrCodeScript: the page script ran but reported failure, or could not be
	// evaluated at all.
	ErrCodeScript ErrorCode = "SCRIPT_FAILURE"
	// ErrCodeEmptyAnswer: the request carries no usable answer.
	ErrCodeEmptyAnswer ErrorCode = "EMPTY_ANSWER"
	// ErrCodePageUnavailable: no page to run against.
	ErrCodePageUnavailable ErrorCode = "PAGE_UNAVAILABLE"
)

// Error is returned by every Helper operation that fails.
type Error struct {
	Code    ErrorCode
	Message string
	// Blank is the 1-based blank that failed, for partial fill-blank failures.
	Blank int
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns the error as a flat map for structured results.
func (e *Error) Details() map[string]interface{} {
	d := map[string]interface{}{"message": e.Error()}
	if e.Blank > 0 {
		d["blank"] = e.Blank
	}
	return d
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
