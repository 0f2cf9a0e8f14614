package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor handles the actual execution of handler invocations with
// panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.panicHandler = h
		}
	}
}

// Execute runs an invocation and returns the result.
// It recovers from panics and captures timing information. Panic values that
// implement Unwinder are re-raised unchanged.
func (e *Executor) Execute(ctx context.Context, fn Invocation) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(Unwinder); ok {
			panic(r)
		}

		stack := debug.Stack()
		result.Success = false
		result.Panicked = true
		result.PanicValue = r
		result.PanicStack = stack

		// Protect the panic handler call - don't let it crash the dispatch
		func() {
			defer func() { _ = recover() }()
			e.panicHandler(r, stack)
		}()
	}()

	if err := fn(ctx); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}
