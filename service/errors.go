package service

import (
	"errors"
	"fmt"
)

// Pipeline error classes. Each stage wraps its cause with one of these so the
// handler can map failures with errors.Is. A failed job is not an error.
var (
	ErrInputValidation    = errors.New("invalid input")
	ErrFetch              = errors.New("fetch failed")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrStaging            = errors.New("staging failed")
	ErrSubmission         = errors.New("job submission failed")
	ErrPollTransient      = errors.New("job status temporarily unavailable")
	ErrJobStatus          = errors.New("job status unavailable")
	ErrPollTimeout        = errors.New("timed out waiting for job")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrJobNotFound is returned by job service adapters for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrObjectNotFound is returned by the object store for a missing key.
	ErrObjectNotFound = errors.New("object not found")
)

func wrap(class error, cause error) error {
	if cause == nil {
		return class
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether a collaborator error may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrObjectNotFound)
}
