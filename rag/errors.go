package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for ownership and lookup failures. The two are always kept
// distinct: an unknown identifier is not-found, a known identifier owned by
// someone else is forbidden.
var (
	ErrNotFound  = errors.New("document not found")
	ErrForbidden = errors.New("access denied")
)

// ValidationError rejects a request before any state is created: missing
// filename, oversized file, disallowed type. TooLarge marks the size-cap
// case, which callers report differently from other rejections.
type ValidationError struct {
	Msg      string
	TooLarge bool
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError signals malformed configuration, such as an unrecognized
// file type tag or a chunk overlap that is not smaller than the chunk size.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// Configurationf builds a ConfigurationError from a format string.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// ExtractionError signals corrupt or unreadable file content.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed: %v", e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// ModelUnavailableError signals that the embedding or language model could not
// be loaded or reached. The health probe reports this proactively.
type ModelUnavailableError struct {
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: %v", e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// StorageError signals an unreachable or misbehaving storage backend.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Storagef wraps a backend error with the failing operation name.
func Storagef(op string, cause error) error {
	return &StorageError{Op: op, Cause: cause}
}
