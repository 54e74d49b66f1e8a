package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrReadOnly is returned when a write is attempted while the database
	// is in read-only mode. Distinct from validation errors so the caller
	// can present a "try again later" response.
	ErrReadOnly = errors.New("database is in read-only mode")

	// ErrDataCorrupted is returned when a persisted payload cannot be
	// decoded. This indicates a persistence or serialization bug, not a
	// user mistake, and is treated as a hard failure.
	ErrDataCorrupted = errors.New("stored payload is corrupted")

	// Entity-specific "not found" errors

	// ErrRecommendationNotFound indicates that no link recommendation is
	// stored for the requested page or revision.
	ErrRecommendationNotFound = fmt.Errorf("%w: link recommendation", ErrNotFound)

	// ErrPageNotFound indicates that the wiki page could not be resolved.
	ErrPageNotFound = fmt.Errorf("%w: page", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "link_recommendation")
	Operation string // The operation that failed (e.g., "insert")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
