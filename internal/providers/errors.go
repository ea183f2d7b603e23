package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider rejected our payload or returned malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unreachable or failing
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates a response the status tables cannot map
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorNotFound indicates the endpoint does not exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates the provider throttled us
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	Service    string
	Message    string
	Underlying error
	Retryable  bool // Whether this error is worth retrying
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Service, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Service, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a new normalized provider error
func NewProviderError(category ErrorCategory, service, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		Service:    service,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
