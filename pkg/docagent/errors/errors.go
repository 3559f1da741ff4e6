package errors

import (
	"errors"
	"fmt"
)

// Common error types shared across the generation pipeline
var (
	// ErrParse indicates a source file could not be parsed
	ErrParse = errors.New("source parse failed")

	// ErrRateLimited indicates a provider rate limit was hit
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrTimeout indicates a provider request exceeded its time limit
	ErrTimeout = errors.New("request timeout exceeded")

	// ErrProvider indicates the provider rejected the request
	ErrProvider = errors.New("provider request failed")

	// ErrMutationConflict indicates a file changed between parse and write
	ErrMutationConflict = errors.New("file changed since last parse")

	// ErrNotFound indicates a lookup matched no component
	ErrNotFound = errors.New("component not found")

	// ErrNoRetry indicates this error should not be retried
	ErrNoRetry = errors.New("operation cannot be retried")
)

// ComponentError represents an error that occurred while processing one
// code component
type ComponentError struct {
	Component string
	Stage     string
	Err       error
	Retry     bool
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s failed during %s: %v", e.Component, e.Stage, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

func (e *ComponentError) CanRetry() bool {
	return e.Retry
}

// NewComponentError creates a new component error
func NewComponentError(component, stage string, err error, canRetry bool) *ComponentError {
	return &ComponentError{
		Component: component,
		Stage:     stage,
		Err:       err,
		Retry:     canRetry,
	}
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNoRetry) {
		return false
	}

	var compErr *ComponentError
	if errors.As(err, &compErr) {
		return compErr.CanRetry()
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, ErrParse) || errors.Is(err, ErrNotFound) {
		return false
	}

	// Default to retryable for unknown errors
	return true
}

// IsConflict checks if an error is a mutation conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrMutationConflict)
}

// IsRateLimited checks if an error is due to rate limiting
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
