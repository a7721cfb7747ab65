// Package errors provides custom error types for the quiver system.
// These errors enable programmatic error checking at the adapter and
// pipeline boundaries, where the class of a failure decides whether a
// record is dropped, a source is skipped, or the run is aborted.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the quiver system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrBlocked indicates that an upstream source is refusing to serve us
	ErrBlocked = errors.New("source blocked request")

	// ErrSourceUnavailable indicates that a source is temporarily unavailable
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// FetchError represents a failed network fetch against an upstream source.
// Blocked is set when the response looked like anti-scraping interference
// rather than an ordinary transport failure.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Blocked    bool
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	switch {
	case e.Blocked:
		return fmt.Sprintf("fetch blocked by %s at %s: %s", e.Source, e.URL, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("fetch error from %s: %s", e.Source, e.Message)
	}
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	if e.Blocked && target == ErrBlocked {
		return true
	}
	if e.StatusCode == 429 {
		return target == ErrBlocked
	}
	if e.StatusCode >= 500 {
		return target == ErrSourceUnavailable
	}
	return false
}

// NewFetchError creates a new FetchError
func NewFetchError(source, url string, statusCode int, message string) *FetchError {
	return &FetchError{
		Source:     source,
		URL:        url,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ParseError represents an unexpected shape in a source document.
type ParseError struct {
	Source  string
	URL     string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("parse error from %s at %s: %s", e.Source, e.URL, e.Message)
	}
	return fmt.Sprintf("parse error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(source, url, message string, err error) *ParseError {
	return &ParseError{Source: source, URL: url, Message: message, Err: err}
}

// IdentityError represents a raw record whose brand/model could not be
// resolved into a board key. The record is dropped, never the run.
type IdentityError struct {
	Brand   string
	Model   string
	Message string
}

// Error implements the error interface
func (e *IdentityError) Error() string {
	return fmt.Sprintf("cannot resolve identity for brand=%q model=%q: %s", e.Brand, e.Model, e.Message)
}

// Is implements errors.Is support
func (e *IdentityError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewIdentityError creates a new IdentityError
func NewIdentityError(brand, model, message string) *IdentityError {
	return &IdentityError{Brand: brand, Model: model, Message: message}
}

// ValidationError represents a malformed field on a single raw record.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// StorageError represents a catalog store failure. Unlike every other
// error class it aborts the run.
type StorageError struct {
	Operation string // "get", "put", "list", "delete", "open"
	Entity    string // "run", "board", "listing", "claim", "cache_entry"
	Key       string
	Err       error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s of %s %s: %v", e.Operation, e.Entity, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s of %s: %v", e.Operation, e.Entity, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError
func NewStorageError(operation, entity, key string, err error) *StorageError {
	return &StorageError{Operation: operation, Entity: entity, Key: key, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration, Message: message}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBlocked checks if an error indicates anti-scraping blocking
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsValidationError checks if an error is a validation or identity error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSourceUnavailable checks if an error indicates source unavailability
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsStorage checks if an error is a storage error. Storage errors are the
// only class that aborts a run.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Helper wrapping functions for common patterns

// WrapFetch wraps an error as a FetchError
func WrapFetch(source, url string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Source: source, URL: url, Message: err.Error(), Err: err}
}

// WrapParse wraps an error as a ParseError
func WrapParse(source, url string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Source: source, URL: url, Message: err.Error(), Err: err}
}

// WrapStorage wraps an error as a StorageError
func WrapStorage(operation, entity, key string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(operation, entity, key, err)
}
