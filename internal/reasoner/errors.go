package reasoner

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy of a reasoning call.
type ErrorCategory string

const (
	// ErrorTimeout indicates the API took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates a response without usable text
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates every configured key was rejected
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorOutage indicates the API is unavailable
	ErrorOutage ErrorCategory = "outage"

	// ErrorRateLimited indicates every configured key is throttled
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorNotConfigured indicates no API key is configured
	ErrorNotConfigured ErrorCategory = "not_configured"

	// ErrorInternal indicates an unexpected failure
	ErrorInternal ErrorCategory = "internal"
)

// Error wraps a reasoning failure with its category.
type Error struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("reasoner [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("reasoner [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized error. Timeouts, outages and rate limits are retryable.
func NewError(category ErrorCategory, message string, underlying error) *Error {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &Error{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth one more attempt.
func IsRetryable(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var re *Error
	if errors.As(err, &re) {
		return re.Category
	}
	return ErrorInternal
}
