// Package errors provides the error taxonomy shared by the reconciliation packages.
// It lives on its own so fsrename, reconcile and the Radarr adapter can classify
// failures without importing each other.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reconciliation taxonomy.
var (
	// ErrMissingSource indicates the folder to rename does not exist on disk.
	ErrMissingSource = errors.New("source path does not exist")

	// ErrCollision indicates the rename destination already exists. It is never
	// resolved by suffixing or overwriting.
	ErrCollision = errors.New("destination path already exists")

	// ErrRenameFailed indicates both the direct rename and the fallback move failed.
	ErrRenameFailed = errors.New("rename failed")

	// ErrFallbackIncomplete indicates the fallback move copied the tree but could
	// not remove the source, so content now exists at both paths.
	ErrFallbackIncomplete = errors.New("fallback move left content at both paths")

	// ErrUnreconciled indicates the folder was renamed on disk but the remote
	// record could not be updated to match.
	ErrUnreconciled = errors.New("filesystem and remote record are out of sync")

	// ErrIncomplete indicates a descriptor could not be derived for every enabled field.
	ErrIncomplete = errors.New("descriptor incomplete")

	// ErrMissingMetadata indicates the remote record lacks fields required to reconcile it.
	ErrMissingMetadata = errors.New("required item metadata missing")
)

// NonRetryableError represents an error that should not be retried.
// The retry policy stops immediately when it sees one.
type NonRetryableError struct {
	message string
	cause   error
}

// Error implements the error interface.
func (e *NonRetryableError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *NonRetryableError) Unwrap() error {
	return e.cause
}

// Is checks if the target error is a NonRetryableError.
func (e *NonRetryableError) Is(target error) bool {
	_, ok := target.(*NonRetryableError)
	return ok
}

// WrapNonRetryable wraps an existing error as non-retryable.
func WrapNonRetryable(cause error) error {
	if cause == nil {
		return nil
	}
	return &NonRetryableError{
		message: "operation failed with non-retryable error",
		cause:   cause,
	}
}

// IsNonRetryable checks if an error is non-retryable.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryableErr *NonRetryableError
	return errors.As(err, &nonRetryableErr)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
