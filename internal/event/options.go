package event

import (
	"log/slog"
	"time"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// hierarchy is the event type hierarchy handlers are resolved against.
	hierarchy *eventtype.Hierarchy

	// coordinator owns synchronous dispatch.
	coordinator *Coordinator

	// policy receives captured handler failures.
	policy ExceptionPolicy

	// logger is used for bus lifecycle and async pool messages.
	logger *slog.Logger

	// asyncQueueSize is the size of the async event queue.
	asyncQueueSize int

	// asyncWorkerCount is the number of async worker goroutines.
	asyncWorkerCount int

	// asyncTimeout bounds the context of each posted dispatch. Zero disables it.
	asyncTimeout time.Duration
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   1024,
		asyncWorkerCount: 4,
	}
}

// WithHierarchy sets the event type hierarchy.
func WithHierarchy(h *eventtype.Hierarchy) BusOption {
	return func(c *busConfig) {
		if h != nil {
			c.hierarchy = h
		}
	}
}

// WithCoordinator sets the coordinator for synchronous events.
func WithCoordinator(co *Coordinator) BusOption {
	return func(c *busConfig) {
		if co != nil {
			c.coordinator = co
		}
	}
}

// WithExceptionPolicy sets the sink for captured handler failures.
func WithExceptionPolicy(p ExceptionPolicy) BusOption {
	return func(c *busConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithLogger sets the bus logger. The default exception policy logs here too.
func WithLogger(l *slog.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAsyncQueueSize sets the async event queue size.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithAsyncWorkers sets the number of async worker goroutines.
func WithAsyncWorkers(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithAsyncTimeout sets the per-event timeout for posted dispatches.
func WithAsyncTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		if timeout >= 0 {
			c.asyncTimeout = timeout
		}
	}
}
