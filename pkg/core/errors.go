package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code, so derived copies match the predefined errors.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryNotFound,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}
	ErrActionFailed = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "action_failed",
		Message:  "action failed",
	}
	ErrAssertionMismatch = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "assertion_mismatch",
		Message:  "assertion failed",
	}
	ErrAuthenticationFailed = &ExecutionError{
		Category: ErrCategoryAuthentication,
		Code:     "authentication_failed",
		Message:  "authentication failed",
	}
	ErrRecorderFailed = &ExecutionError{
		Category: ErrCategoryRecorder,
		Code:     "recorder_failed",
		Message:  "diagnostics capture failed",
	}
	ErrSessionClosed = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_closed",
		Message:  "session is closed",
	}
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// NotFound reports that every strategy in tried came back empty.
func NotFound(tried []string, cause error) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryNotFound,
		Code:     ErrElementNotFound.Code,
		Message:  fmt.Sprintf("element not found (tried %s)", strings.Join(tried, ", ")),
		Details:  map[string]interface{}{"strategies": tried},
		Cause:    cause,
	}
}

// TimedOut reports that condition never became true within waited.
func TimedOut(condition string, waited time.Duration, last error) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     ErrWaitTimeout.Code,
		Message:  fmt.Sprintf("timed out after %s waiting for %s", waited, condition),
		Details:  map[string]interface{}{"condition": condition, "waited": waited.String()},
		Cause:    last,
	}
}

// ActionFailed reports a failed interaction.
func ActionFailed(action string, cause error) *ExecutionError {
	return ErrActionFailed.WithMessage(action + " failed").WithCause(cause)
}

// Mismatch reports an assertion whose observed value differs from the expected one.
func Mismatch(subject string, expected, observed interface{}) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryAction,
		Code:     ErrAssertionMismatch.Code,
		Message:  fmt.Sprintf("%s: expected %v, observed %v", subject, expected, observed),
		Details:  map[string]interface{}{"expected": expected, "observed": observed},
	}
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
// Errors outside the taxonomy count as action failures.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryAction
}

// StepFailure describes which step of a workflow failed, where, and why.
type StepFailure struct {
	Workflow string
	StepName string
	Stage    Stage
	Cause    error
	Artifact string // Diagnostic snapshot path, empty if capture failed
}

// Error implements the error interface
func (f *StepFailure) Error() string {
	msg := fmt.Sprintf("step %q failed while %s: %v", f.StepName, strings.ToLower(string(f.Stage)), f.Cause)
	if f.Artifact != "" {
		msg += " (snapshot: " + f.Artifact + ")"
	}
	return msg
}

// Unwrap returns the underlying cause
func (f *StepFailure) Unwrap() error {
	return f.Cause
}
