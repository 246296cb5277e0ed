package core

import "fmt"

// Error codes for expected outcomes. Everything except
// ErrCodeInfrastructure is surfaced to the caller as-is.
const (
	ErrCodeValidation     = "validation_error"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeConflict       = "conflict"
	ErrCodeInfrastructure = "infrastructure_error"
)

// CoreError wraps a code and human-readable message. RetryAfter is set only
// for rate-limited outcomes and carries the remaining cooldown in seconds.
type CoreError struct {
	Code       string
	Message    string
	RetryAfter int
	cause      error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying infrastructure fault, if any.
func (e *CoreError) Unwrap() error {
	return e.cause
}

// Validation marks malformed input.
func Validation(msg string) *CoreError {
	return &CoreError{Code: ErrCodeValidation, Message: msg}
}

// Forbidden marks an authorization failure. Authorization failures are
// outcomes, never infrastructure faults.
func Forbidden(msg string) *CoreError {
	return &CoreError{Code: ErrCodeForbidden, Message: msg}
}

// NotFound marks an absent referenced entity.
func NotFound(msg string) *CoreError {
	return &CoreError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimited marks an active slowmode cooldown.
func RateLimited(remainingSeconds int) *CoreError {
	return &CoreError{
		Code:       ErrCodeRateLimited,
		Message:    fmt.Sprintf("slowmode active, retry in %d seconds", remainingSeconds),
		RetryAfter: remainingSeconds,
	}
}

// Conflict marks a duplicate-state outcome such as reacting twice.
func Conflict(msg string) *CoreError {
	return &CoreError{Code: ErrCodeConflict, Message: msg}
}

// Infrastructure wraps a store or timeout fault. The original error is kept
// for logging; callers see only the generic message.
func Infrastructure(err error) *CoreError {
	return &CoreError{Code: ErrCodeInfrastructure, Message: "internal error", cause: err}
}
