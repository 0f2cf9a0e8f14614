package dispatch

import (
	"context"
	"time"
)

// Invocation is a single unit of handler work.
type Invocation func(ctx context.Context) error

// Job is a unit of work run by the Pool.
type Job func(ctx context.Context)

// Unwinder marks panic values that the Executor must let through.
type Unwinder interface {
	Unwind()
}

// Result represents the outcome of an invocation.
type Result struct {
	// Success is true if the invocation completed without error or panic.
	Success bool

	// Error is the error returned by the invocation, if any.
	Error error

	// Panicked is true if the invocation panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the invocation took, including any nested work it
	// triggered before returning.
	Duration time.Duration
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the result indicates an error (not panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is called when an invocation or job panics.
// It receives the panic value and the stack trace.
type PanicHandler func(panicValue any, stack []byte)

// defaultPanicHandler is a no-op panic handler.
func defaultPanicHandler(panicValue any, stack []byte) {}
