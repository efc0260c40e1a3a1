package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType classifies failures coming back from the Telegram API boundary.
type ErrorType string

const (
	ErrorTypeFloodWait   ErrorType = "flood_wait"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a remote-capability error with type information. Wait is
// only meaningful for flood-wait errors and carries the server-requested
// backoff duration.
type Error struct {
	Type    ErrorType
	Message string
	Wait    time.Duration
}

func (e *Error) Error() string {
	if e.Type == ErrorTypeFloodWait {
		return fmt.Sprintf("%s error: wait %s: %s", e.Type, e.Wait, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// FloodWait builds the backoff-requested error for the given duration.
func FloodWait(wait time.Duration) *Error {
	return &Error{Type: ErrorTypeFloodWait, Message: "rate limit hit", Wait: wait}
}

// ServerError builds a transient server-side error.
func ServerError(msg string) *Error {
	return &Error{Type: ErrorTypeServerError, Message: msg}
}

// Timeout builds a transient timeout error.
func Timeout(msg string) *Error {
	return &Error{Type: ErrorTypeTimeout, Message: msg}
}

// NotFound builds a resolution error for unknown channels or users.
func NotFound(msg string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: msg}
}

// IsRetryable checks if an error type should be retried by the invoker.
// Flood waits are handled separately and do not count as transient retries.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeServerError, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// TypeOf extracts the error type, defaulting to unknown for plain errors.
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// AsFloodWait reports whether err is a flood-wait signal and returns the
// requested wait duration.
func AsFloodWait(err error) (time.Duration, bool) {
	var apiErr *Error
	if stderrors.As(err, &apiErr) && apiErr.Type == ErrorTypeFloodWait {
		return apiErr.Wait, true
	}
	return 0, false
}

// IsNotFound reports whether err is a channel/user resolution failure.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}
