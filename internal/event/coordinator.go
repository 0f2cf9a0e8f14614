package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// Coordinator is the single logical thread on which synchronous events are
// dispatched.
//
// Goroutines have no identity in Go, so affinity is carried by the context:
// a context derived from Bind is "on" the coordinator, and code running inside
// Run or Call receives such a context. Asynchronous work must use a context
// that does not carry the mark (see Detach).
type Coordinator struct {
	name  string
	key   *coordinatorKey
	tasks chan coordinatorTask

	running atomic.Bool
}

type coordinatorKey struct{ name string }

type coordinatorTask struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan any
}

// NewCoordinator creates a coordinator with a task queue of the given size.
func NewCoordinator(name string, queueSize int) *Coordinator {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Coordinator{
		name:  name,
		key:   &coordinatorKey{name: name},
		tasks: make(chan coordinatorTask, queueSize),
	}
}

// Name returns the coordinator name.
func (c *Coordinator) Name() string {
	return c.name
}

// Bind returns a context marked as running on the coordinator.
func (c *Coordinator) Bind(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, c.key, true)
}

// Detach returns a context that no longer carries the coordinator mark.
func (c *Coordinator) Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if !c.Owns(ctx) {
		return ctx
	}
	return context.WithValue(ctx, c.key, false)
}

// Owns reports whether ctx is marked as running on the coordinator.
func (c *Coordinator) Owns(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	on, _ := ctx.Value(c.key).(bool)
	return on
}

// IsRunning reports whether Run is active.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Run executes submitted tasks until ctx is done. Each task receives a bound
// context. Only one Run may be active at a time.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrCoordinatorRunning
	}
	defer c.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-c.tasks:
			c.runTask(task)
		}
	}
}

// runTask executes one task, reporting a panic through its done channel.
func (c *Coordinator) runTask(task coordinatorTask) {
	var failure any
	defer func() {
		if task.done != nil {
			task.done <- failure
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("coordinator task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	task.fn(c.Bind(task.ctx))
}

// Submit queues fn to run on the coordinator without waiting for it.
func (c *Coordinator) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	if fn == nil {
		return ErrNilHandler
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case c.tasks <- coordinatorTask{ctx: c.Detach(ctx), fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the coordinator and waits for it to return.
// If ctx is already bound to the coordinator, fn runs inline.
// A panic inside fn is returned as an error.
func (c *Coordinator) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilHandler
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Owns(ctx) {
		return fn(ctx)
	}

	var result error
	done := make(chan any, 1)
	task := coordinatorTask{
		ctx: ctx,
		fn: func(bound context.Context) {
			result = fn(bound)
		},
		done: done,
	}

	select {
	case c.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case failure := <-done:
		if failure != nil {
			return failure.(error)
		}
		return result
	case <-ctx.Done():
		return ctx.Err()
	}
}
