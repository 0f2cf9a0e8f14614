package event

import (
	"errors"
	"fmt"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// Sentinel errors for the event bus.
var (
	// ErrDuplicateRegistration is returned when a registration is already
	// present in its handler list.
	ErrDuplicateRegistration = errors.New("handler already registered")

	// ErrNotRegistered is returned when removing a registration that is not present.
	ErrNotRegistered = errors.New("handler not registered")

	// ErrWrongThread is returned when a synchronous event is dispatched off the
	// coordinator, or an asynchronous event on it.
	ErrWrongThread = errors.New("event dispatched on the wrong thread")

	// ErrDoubleYield is returned by Yield when the handler's chain has already advanced.
	ErrDoubleYield = errors.New("yield called more than once")

	// ErrUnknownEventType is returned for tags missing from the hierarchy.
	ErrUnknownEventType = eventtype.ErrUnknownTag

	// ErrInvalidPriority is returned for priorities outside the defined range.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when a nil event is dispatched.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrBusNotRunning is returned by Post when the async pool is stopped.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called on a running bus.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrQueueFull is returned by Post when the async queue cannot accept more events.
	ErrQueueFull = errors.New("event queue is full")

	// ErrTerminalPanic is delivered by Post when the terminal action panicked.
	ErrTerminalPanic = errors.New("terminal action panicked")

	// ErrCoordinatorRunning is returned when Run is called on a running coordinator.
	ErrCoordinatorRunning = errors.New("coordinator is already running")
)

// isFatal reports whether err must abort the dispatch instead of being
// routed to the exception policy.
func isFatal(err error) bool {
	return errors.Is(err, ErrDoubleYield) || errors.Is(err, ErrWrongThread)
}

// HandlerError wraps an error returned by a handler with additional context.
type HandlerError struct {
	// RegistrationID is the ID of the registration whose handler failed.
	RegistrationID string

	// Handler is the registration's display name.
	Handler string

	// Owner is the owner name, empty for unowned registrations.
	Owner string

	// EventType is the concrete type of the event being dispatched.
	EventType eventtype.Tag

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s: %v", e.Handler, e.EventType, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a handler panic as an error.
type PanicError struct {
	// RegistrationID is the ID of the registration whose handler panicked.
	RegistrationID string

	// Handler is the registration's display name.
	Handler string

	// Owner is the owner name, empty for unowned registrations.
	Owner string

	// EventType is the concrete type of the event being dispatched.
	EventType eventtype.Tag

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked on %s: %v", e.Handler, e.EventType, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
