package event

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Priority determines handler execution order.
// Lower values execute first; Monitor runs last.
type Priority int

const (
	// PriorityLowest runs first and has the least say over the outcome.
	PriorityLowest Priority = iota

	// PriorityLow runs after Lowest.
	PriorityLow

	// PriorityNormal is the default priority.
	PriorityNormal

	// PriorityHigh runs after Normal.
	PriorityHigh

	// PriorityHighest has the final say over the outcome.
	PriorityHighest

	// PriorityMonitor is for handlers that observe the outcome.
	// By convention they must not modify the event.
	PriorityMonitor
)

var priorityNames = [...]string{"LOWEST", "LOW", "NORMAL", "HIGH", "HIGHEST", "MONITOR"}

// String returns the priority name.
func (p Priority) String() string {
	if p.IsValid() {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// IsValid reports whether p is one of the defined priorities.
func (p Priority) IsValid() bool {
	return p >= PriorityLowest && p <= PriorityMonitor
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}
	return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Priorities returns every priority in execution order.
func Priorities() []Priority {
	return []Priority{PriorityLowest, PriorityLow, PriorityNormal, PriorityHigh, PriorityHighest, PriorityMonitor}
}

// Yielder lets a running handler execute the rest of the dispatch chain.
//
// The first Yield call runs every later handler and the terminal action before
// it returns. Any further call, including one made after the handler returned,
// fails with ErrDoubleYield. Yield must be called from the goroutine running
// the handler.
type Yielder interface {
	Yield() error
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event. A handler that never calls y.Yield is
	// advanced past automatically once it returns.
	Handle(ctx context.Context, ev Event, y Yielder) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, ev Event, y Yielder) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, ev Event, y Yielder) error {
	return f(ctx, ev, y)
}

// Typed adapts a handler for one concrete event type.
// Events of any other type pass through untouched.
func Typed[T Event](fn func(ctx context.Context, ev T, y Yielder) error) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event, y Yielder) error {
		e, ok := ev.(T)
		if !ok {
			return nil
		}
		return fn(ctx, e, y)
	})
}

// TerminalFunc is the event's default action, run once after every handler
// has had its turn.
type TerminalFunc func(ctx context.Context, ev Event) error

// noopTerminal is the terminal action used by Fire.
func noopTerminal(context.Context, Event) error { return nil }

// Owner groups registrations for bulk removal and decides whether they are live.
type Owner interface {
	// Name identifies the owner in reports.
	Name() string

	// Enabled reports whether the owner's handlers may currently run.
	Enabled() bool
}

// StaticOwner is an Owner whose liveness is toggled by hand.
type StaticOwner struct {
	name     string
	disabled atomic.Bool
}

// NewStaticOwner creates an enabled owner.
func NewStaticOwner(name string) *StaticOwner {
	return &StaticOwner{name: name}
}

// Name returns the owner name.
func (o *StaticOwner) Name() string { return o.name }

// Enabled reports whether the owner is enabled.
func (o *StaticOwner) Enabled() bool { return !o.disabled.Load() }

// SetEnabled enables or disables the owner.
func (o *StaticOwner) SetEnabled(enabled bool) { o.disabled.Store(!enabled) }

// Stats contains event bus statistics.
type Stats struct {
	// Dispatched is the number of dispatches that passed the affinity check.
	Dispatched uint64

	// HandlersInvoked is the number of handler invocations.
	HandlersInvoked uint64

	// HandlersSkipped is the number of handlers skipped because their owner
	// was disabled or the event was cancelled.
	HandlersSkipped uint64

	// Yields is the number of successful Yield calls.
	Yields uint64

	// HandlerErrors is the number of handler errors routed to the policy.
	HandlerErrors uint64

	// HandlerPanics is the number of handler panics routed to the policy.
	HandlerPanics uint64

	// FatalAborts is the number of dispatches aborted by ErrDoubleYield or
	// ErrWrongThread escaping a handler.
	FatalAborts uint64

	// TerminalFailures is the number of terminal actions that failed.
	TerminalFailures uint64

	// WrongThread is the number of dispatches rejected by the affinity check.
	WrongThread uint64

	// Posted is the number of async events accepted by Post.
	Posted uint64

	// Dropped is the number of async events rejected because the queue was full.
	Dropped uint64

	// Bakes is the number of handler sequences computed.
	Bakes uint64

	// Registrations is the current number of registrations.
	Registrations int

	// QueueDepth is the current async queue depth.
	QueueDepth int
}
