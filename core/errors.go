package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Cart validation errors
	ErrInvalidItem     = errors.New("invalid cart item")
	ErrMissingIdentity = errors.New("missing item identity")
	ErrNegativePrice   = errors.New("negative item price")

	// Checkout errors
	ErrNotSignedIn     = errors.New("not signed in")
	ErrAddressRequired = errors.New("delivery address required")
	ErrEmptyCart       = errors.New("cart is empty")

	// Location errors
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrUnsupported         = errors.New("geolocation unsupported")
	ErrNoResults           = errors.New("no geocoding results")

	// Address book errors
	ErrAddressNotFound = errors.New("saved address not found")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout            = errors.New("operation timeout")
	ErrContextCanceled    = errors.New("context canceled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// HTTP/Network errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrRequestFailed    = errors.New("request failed")
)

// StoreError provides structured error information with context
// It implements the error interface and supports error wrapping
type StoreError struct {
	Op      string // Operation that failed (e.g., "cart.AddItem")
	Kind    string // Error kind (e.g., "cart", "location", "storage")
	Key     string // Optional key of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *StoreError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.Key != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.Key, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(op, kind string, err error) *StoreError {
	return &StoreError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable
// Retryable errors are typically transient network or availability issues
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrRequestFailed)
}

// IsValidation checks if an error is a cart boundary validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrMissingIdentity) ||
		errors.Is(err, ErrNegativePrice)
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoResults) ||
		errors.Is(err, ErrAddressNotFound)
}

// IsPermission checks if an error is a geolocation permission failure
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
