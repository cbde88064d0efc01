package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to the registry
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when submitting a job whose id already exists
	ErrDuplicateJob = errors.New("job already exists")

	// ErrJobFinalized is returned when an update would move a job out of a terminal status
	ErrJobFinalized = errors.New("job already in terminal status")

	// ErrJobNotReady is returned when downloading a job that has not completed
	ErrJobNotReady = errors.New("job has not completed")

	// ErrArtifactGone is returned when a completed job's archive was already reclaimed
	ErrArtifactGone = errors.New("artifact no longer available")

	// ErrQueueFull is returned when the worker pool cannot accept more jobs
	ErrQueueFull = errors.New("job queue is full")
)

// ValidationError describes a rejected submission
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// ResourceError wraps working directory and artifact storage failures
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return "failed to " + e.Op + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failure reported by the Fetcher. Its message is the Fetcher's, unchanged.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EmptyResultError marks a fetch that succeeded but produced nothing to package
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return EmptyResultMessage
}

// NewResourceError creates a new resource error
func NewResourceError(op string, err error) error {
	return &ResourceError{Op: op, Err: err}
}

// NewFetchError creates a new fetch error
func NewFetchError(err error) error {
	return &FetchError{Err: err}
}
