package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running pool.
	ErrAlreadyRunning = errors.New("pool is already running")

	// ErrNotRunning is returned when operations are attempted on a stopped pool.
	ErrNotRunning = errors.New("pool is not running")

	// ErrQueueFull is returned when the job queue is full and cannot accept more jobs.
	ErrQueueFull = errors.New("job queue is full")

	// ErrNilJob is returned when a nil job is submitted.
	ErrNilJob = errors.New("job cannot be nil")
)
