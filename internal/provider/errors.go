package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrTokenLimit indicates the prompt exceeded the model's context window.
	ErrTokenLimit = errors.New("token limit exceeded")

	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrNoProvider indicates no provider is registered for the requested role.
	ErrNoProvider = errors.New("no provider configured")
)

// IsRetryable reports whether the error is transient and the request
// could be retried after a delay. Token-limit errors are not retryable
// as-is: the prompt itself must change first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
