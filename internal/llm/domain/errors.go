package domain

import (
	"errors"
	"strconv"
)

var (
	ErrAllProvidersExhausted = errors.New("all_providers_exhausted")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrNoMessages            = errors.New("no_messages")
	ErrEmptyCompletion       = errors.New("empty_completion")
	ErrAdapterRegistered     = errors.New("adapter_already_registered")
	ErrRegistryFrozen        = errors.New("registry_frozen")
)

// ProviderError is a non-2xx answer from a provider. Body is kept for logs
// and never returned to callers outside the llm packages.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return e.Provider + ": unexpected status " + strconv.Itoa(e.StatusCode)
}

// Retryable reports whether the status is worth another attempt. Client
// errors are final except request timeout and rate limiting.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	default:
		return true
	}
}
