package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *SocraticError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *SocraticError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// PlanInvalid creates an invalid plan error
func PlanInvalid(path string, cause error) *SocraticError {
	return Wrap(cause, ErrCodePlanInvalid, fmt.Sprintf("invalid plan: %s", path)).
		WithDetail("path", path)
}

// CompletionUnavailable is returned when no API credential is configured
func CompletionUnavailable() *SocraticError {
	return New(ErrCodeCompletionUnavailable, "completion API is not configured")
}

// CompletionFailed wraps an error returned by the completion API
func CompletionFailed(model string, cause error) *SocraticError {
	return Wrap(cause, ErrCodeCompletionFailed, "completion request failed").
		WithDetail("model", model)
}

// MalformedReply creates an error for a completion reply that could not be parsed
func MalformedReply(what string, cause error) *SocraticError {
	return Wrap(cause, ErrCodeMalformedReply, fmt.Sprintf("malformed %s reply", what))
}

// RepoNotConfigured is returned when publishing without a repository identifier
func RepoNotConfigured() *SocraticError {
	return New(ErrCodeRepoNotConfigured, "repository not specified in GITHUB_REPO or GITHUB_REPOSITORY")
}

// PublishFailed creates an error for a failed source hosting call
func PublishFailed(step string, status int, cause error) *SocraticError {
	return Wrap(cause, ErrCodePublishFailed, fmt.Sprintf("%s failed", step)).
		WithDetail("step", step).
		WithDetail("status", status)
}

// InvalidTransition creates an error for a trigger that is not legal in the current state
func InvalidTransition(state, event string) *SocraticError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("event %s is not allowed in state %s", event, state)).
		WithDetail("state", state).
		WithDetail("event", event)
}
