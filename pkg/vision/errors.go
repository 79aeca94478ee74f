package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNotSupported is returned when the backend lacks a capability.
	ErrNotSupported = errors.New("vision: operation not supported by provider")

	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("vision: empty image")

	// ErrNoGallery is returned when a face operation has no gallery id.
	ErrNoGallery = errors.New("vision: gallery id required")

	// ErrGalleryNotFound is returned when searching a gallery that does not exist.
	ErrGalleryNotFound = errors.New("vision: gallery not found")

	// ErrUnknownProvider is returned by New for an unrecognised backend name.
	ErrUnknownProvider = errors.New("vision: unknown provider")
)

// ProviderError wraps an error with provider and operation context.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("vision [%s] %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
