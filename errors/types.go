package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Plan runner errors
	ErrCodePlanInvalid ErrorCode = "PLAN_INVALID"
	ErrCodeReportWrite ErrorCode = "REPORT_WRITE"

	// Completion API errors
	ErrCodeCompletionUnavailable ErrorCode = "COMPLETION_UNAVAILABLE"
	ErrCodeCompletionFailed      ErrorCode = "COMPLETION_FAILED"
	ErrCodeMalformedReply        ErrorCode = "MALFORMED_REPLY"

	// Source hosting errors
	ErrCodeRepoNotConfigured ErrorCode = "REPO_NOT_CONFIGURED"
	ErrCodePublishFailed     ErrorCode = "PUBLISH_FAILED"

	// Session errors
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeSessionStore      ErrorCode = "SESSION_STORE"

	// Messaging transport errors
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// SocraticError represents a structured error with context
type SocraticError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *SocraticError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SocraticError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *SocraticError) WithDetail(key string, value interface{}) *SocraticError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *SocraticError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new SocraticError
func New(code ErrorCode, message string) *SocraticError {
	return &SocraticError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a SocraticError
func Wrap(err error, code ErrorCode, message string) *SocraticError {
	return &SocraticError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific SocraticError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	socErr, ok := err.(*SocraticError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if socErr.Code == code {
		return true
	}
	// Codes can be layered, e.g. PUBLISH_FAILED caused by CONFIG_INVALID.
	return socErr.Cause != nil && Is(socErr.Cause, code)
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	socErr, ok := err.(*SocraticError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return socErr.Code
}
