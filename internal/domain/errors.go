package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrCatalogMissing     = fmt.Errorf("catalog source: %w", ErrNotFound)
	ErrColumnMissing      = fmt.Errorf("catalog column: %w", ErrNotFound)
	ErrObjectNotFound     = fmt.Errorf("object: %w", ErrNotFound)
	ErrNotGeoTIFF         = fmt.Errorf("geotiff: %w", ErrUnsupported)
	ErrRunInProgress      = fmt.Errorf("sync run in progress: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// CatalogLoadError is fatal: the run cannot start without identifiers.
type CatalogLoadError struct {
	Source string // Path of the catalog source
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("loading catalog %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

// ListingError reports a failed listing for one area. The area is skipped.
type ListingError struct {
	Prefix  string
	AreaKey AreaKey
	Err     error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	return fmt.Sprintf("listing area %s (prefix %s): %v", e.AreaKey, e.Prefix, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListingError) Unwrap() error {
	return e.Err
}

// ExistenceCheckError reports a target existence check that failed for a
// reason other than absence. Callers treat the object as missing and transfer it.
type ExistenceCheckError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *ExistenceCheckError) Error() string {
	return fmt.Sprintf("checking existence of %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExistenceCheckError) Unwrap() error {
	return e.Err
}

// TransferError reports a failed copy of a single task.
type TransferError struct {
	SourceKey string
	TargetKey string
	Err       error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("copying %s to %s: %v", e.SourceKey, e.TargetKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (list, head, copy, ...)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
