// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// ErrorCode is a string type used for structured error reporting from action executors.
type ErrorCode string

const (
	// -- General Execution Errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"

	// -- Exam page errors, mirrored from the exam package --
	ErrCodeQuestionUnresolved ErrorCode = ErrorCode(exam.ErrCodeUnresolved)
	ErrCodeElementNotFound    ErrorCode = ErrorCode(exam.ErrCodeNotFound)
	ErrCodeBlankCountMismatch ErrorCode = ErrorCode(exam.ErrCodeCountMismatch)
	ErrCodeScriptFailure      ErrorCode = ErrorCode(exam.ErrCodeScript)
	ErrCodePageUnavailable    ErrorCode = ErrorCode(exam.ErrCodePageUnavailable)
	ErrCodeEmptyAnswer        ErrorCode = ErrorCode(exam.ErrCodeEmptyAnswer)

	// -- Internal System Errors --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)

// FieldError describes one invalid parameter.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ParamsError is returned when action parameters cannot be decoded or fail
// validation.
type ParamsError struct {
	Action ActionType
	Fields []FieldError
	Err    error
}

func (e *ParamsError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
		}
		return fmt.Sprintf("invalid parameters for %s: %s", e.Action, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("invalid parameters for %s: %v", e.Action, e.Err)
}

func (e *ParamsError) Unwrap() error { return e.Err }

func newParamsError(action ActionType, err error) *ParamsError {
	pe := &ParamsError{Action: action, Err: err}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			pe.Fields = append(pe.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	return pe
}

// classifyError maps a handler error to an error code and details for the
// ExecutionResult.
func classifyError(err error, action Action) (ErrorCode, map[string]interface{}) {
	details := map[string]interface{}{
		"message": err.Error(),
		"action":  action.Type,
	}

	var pe *ParamsError
	if errors.As(err, &pe) {
		if len(pe.Fields) > 0 {
			details["fields"] = pe.Fields
		}
		return ErrCodeInvalidParameters, details
	}

	var ee *exam.Error
	if errors.As(err, &ee) {
		if ee.Blank > 0 {
			details["blank"] = ee.Blank
		}
		return ErrorCode(ee.Code), details
	}

	return ErrCodeExecutionFailure, details
}
