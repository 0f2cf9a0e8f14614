package event

import (
	"sync/atomic"
	"time"

	"github.com/dshills/yieldbus/internal/event/eventtype"
	"github.com/google/uuid"
)

// Event is a single occurrence broadcast to interested handlers.
//
// Events are passed by reference through the whole dispatch; concrete event
// types are expected to be pointers to structs embedding Base.
type Event interface {
	// EventType returns the concrete type tag the event is dispatched as.
	EventType() eventtype.Tag

	// IsAsync reports whether the event must be dispatched off the coordinator.
	// The value is fixed when the event is constructed.
	IsAsync() bool
}

// Cancellable is implemented by events whose default action can be vetoed.
type Cancellable interface {
	Event
	IsCancelled() bool
	SetCancelled(cancelled bool)
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that raised the event.
	Source string
}

// MetadataProvider is implemented by events that carry Metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

// Base carries the fields every event shares. Embed it by value.
type Base struct {
	tag   eventtype.Tag
	async bool
	meta  Metadata
}

// NewBase creates the base of a synchronous event.
func NewBase(tag eventtype.Tag, source string) Base {
	return newBase(tag, false, source)
}

// NewAsyncBase creates the base of an asynchronous event.
func NewAsyncBase(tag eventtype.Tag, source string) Base {
	return newBase(tag, true, source)
}

func newBase(tag eventtype.Tag, async bool, source string) Base {
	return Base{
		tag:   tag,
		async: async,
		meta: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventType returns the event's type tag.
func (b Base) EventType() eventtype.Tag {
	return b.tag
}

// IsAsync reports whether the event is asynchronous.
func (b Base) IsAsync() bool {
	return b.async
}

// IsSync reports whether the event is synchronous.
func (b Base) IsSync() bool {
	return !b.async
}

// EventMetadata returns the event's metadata.
func (b Base) EventMetadata() Metadata {
	return b.meta
}

// CancelState is an embeddable implementation of the cancellation flag.
// It is safe to read and write from several goroutines.
type CancelState struct {
	cancelled atomic.Bool
}

// IsCancelled reports whether the event has been cancelled.
func (c *CancelState) IsCancelled() bool {
	return c.cancelled.Load()
}

// SetCancelled sets the cancellation flag.
func (c *CancelState) SetCancelled(cancelled bool) {
	c.cancelled.Store(cancelled)
}

// IsCancelled reports whether ev is cancellable and currently cancelled.
func IsCancelled(ev Event) bool {
	c, ok := ev.(Cancellable)
	return ok && c.IsCancelled()
}
