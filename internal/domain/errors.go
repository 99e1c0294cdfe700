package domain

// Errors here describe business-level failures. Adapters translate them to
// status codes; nothing in this file knows about transports.

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a business rule rejected the input.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required dependency is down.
	ErrUnavailable = errors.New("unavailable")

	// ErrCacheUnavailable indicates a multi-step cache mutation failed part
	// way through. The durable write has still been attempted.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// UnavailableError reports a dependency outage.
type UnavailableError struct {
	Service string
	Reason  string
}

func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// CacheUnavailableError is returned when the cache accepted the first step
// of an engagement change and failed a later one. Partial is true when the
// durable store was written anyway.
type CacheUnavailableError struct {
	Op      string
	Partial bool
	Err     error
}

func (e *CacheUnavailableError) Error() string {
	msg := "cache unavailable during " + e.Op
	if e.Partial {
		msg += " (partially applied)"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is matches ErrCacheUnavailable.
func (e *CacheUnavailableError) Is(target error) bool {
	return target == ErrCacheUnavailable
}

// Unwrap exposes the underlying cache error.
func (e *CacheUnavailableError) Unwrap() error {
	return e.Err
}

// NewCacheUnavailableError wraps a cache failure seen after a partial write.
func NewCacheUnavailableError(op string, partial bool, err error) error {
	return &CacheUnavailableError{Op: op, Partial: partial, Err: err}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsCacheUnavailable checks if an error is a partial cache failure.
func IsCacheUnavailable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable)
}
