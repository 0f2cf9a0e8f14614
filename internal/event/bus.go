package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/dshills/yieldbus/internal/event/dispatch"
	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// Bus is the dispatch engine. It owns the handler registry, enforces thread
// affinity, and runs the yield protocol for every event.
type Bus struct {
	registry    *Registry
	coordinator *Coordinator
	policy      ExceptionPolicy
	logger      *slog.Logger

	executor *dispatch.Executor
	pool     *dispatch.Pool

	running atomic.Bool
	config  busConfig
	stats   busStats
}

// busStats holds the live counters behind Stats.
type busStats struct {
	dispatched       atomic.Uint64
	invoked          atomic.Uint64
	skipped          atomic.Uint64
	yields           atomic.Uint64
	errors           atomic.Uint64
	panics           atomic.Uint64
	fatalAborts      atomic.Uint64
	terminalFailures atomic.Uint64
	wrongThread      atomic.Uint64
	posted           atomic.Uint64
	dropped          atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}
	if config.hierarchy == nil {
		config.hierarchy = eventtype.NewHierarchy()
	}
	if config.coordinator == nil {
		config.coordinator = NewCoordinator("main", 0)
	}
	if config.policy == nil {
		config.policy = NewLogPolicy(config.logger)
	}

	logger := config.logger
	b := &Bus{
		registry:    NewRegistry(config.hierarchy),
		coordinator: config.coordinator,
		policy:      config.policy,
		logger:      logger,
		executor:    dispatch.NewExecutor(),
		config:      config,
	}

	b.pool = dispatch.NewPool(
		dispatch.WithQueueSize(config.asyncQueueSize),
		dispatch.WithWorkerCount(config.asyncWorkerCount),
		dispatch.WithJobTimeout(config.asyncTimeout),
		dispatch.WithPoolPanicHandler(func(value any, stack []byte) {
			logger.Error("async dispatch panicked",
				slog.Any("panic", value),
				slog.String("stack", string(stack)),
			)
		}),
	)

	return b
}

// Start starts the async worker pool.
func (b *Bus) Start() error {
	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	if err := b.pool.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	b.logger.Debug("event bus started",
		slog.Int("workers", b.config.asyncWorkerCount),
		slog.Int("queue_size", b.config.asyncQueueSize),
	)
	return nil
}

// Stop stops the bus gracefully.
// It waits for queued async events to be dispatched or until ctx is cancelled.
func (b *Bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	err := b.pool.Stop(ctx)
	b.logger.Debug("event bus stopped", slog.Any("error", err))
	return err
}

// IsRunning returns true if the bus is running.
func (b *Bus) IsRunning() bool {
	return b.running.Load()
}

// Coordinator returns the coordinator that owns synchronous dispatch.
func (b *Bus) Coordinator() *Coordinator {
	return b.coordinator
}

// Registry returns the handler registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Hierarchy returns the event type hierarchy.
func (b *Bus) Hierarchy() *eventtype.Hierarchy {
	return b.registry.Hierarchy()
}

// Register adds a registration. It is safe to call from any goroutine.
func (b *Bus) Register(reg *Registration) error {
	return b.registry.Register(reg)
}

// On registers fn for tag and returns the new registration.
func (b *Bus) On(tag eventtype.Tag, fn HandlerFunc, opts ...RegistrationOption) (*Registration, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	reg := Listen(tag, fn, opts...)
	if err := b.registry.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Unregister removes a registration.
func (b *Bus) Unregister(reg *Registration) error {
	return b.registry.Unregister(reg)
}

// UnregisterAll removes every registration of owner.
func (b *Bus) UnregisterAll(owner Owner) int {
	n := b.registry.UnregisterOwner(owner)
	if n > 0 && owner != nil {
		b.logger.Debug("unregistered owner handlers",
			slog.String("owner", owner.Name()),
			slog.Int("count", n),
		)
	}
	return n
}

// UnregisterEverything removes every registration.
func (b *Bus) UnregisterEverything() int {
	return b.registry.UnregisterAll()
}

// Sweep removes the registrations of disabled owners.
func (b *Bus) Sweep() int {
	return b.registry.Sweep()
}

// Handlers returns a copy of the baked handler sequence for tag.
func (b *Bus) Handlers(tag eventtype.Tag) ([]*Registration, error) {
	seq, err := b.registry.Resolve(tag)
	if err != nil {
		return nil, err
	}
	return slices.Clone(seq), nil
}

// Fire dispatches ev with no terminal action.
func (b *Bus) Fire(ctx context.Context, ev Event) error {
	return b.Dispatch(ctx, ev, nil)
}

// Dispatch runs every applicable handler for ev, then terminal, following
// the yield protocol.
//
// Synchronous events must be dispatched with a context bound to the bus
// coordinator, asynchronous events with one that is not; otherwise
// ErrWrongThread is returned before any handler runs.
//
// Handler errors and panics are reported to the exception policy and do not
// reach the caller. The caller sees ErrDoubleYield or ErrWrongThread escaping
// a handler, the terminal action's error unchanged, and a panic raised by the
// terminal action re-raised with its original value.
func (b *Bus) Dispatch(ctx context.Context, ev Event, terminal TerminalFunc) (err error) {
	if ev == nil {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := b.checkAffinity(ctx, ev); err != nil {
		return err
	}

	handlers, err := b.registry.Resolve(ev.EventType())
	if err != nil {
		return err
	}
	if terminal == nil {
		terminal = noopTerminal
	}
	b.stats.dispatched.Add(1)

	f := &frame{
		bus:      b,
		ctx:      ctx,
		event:    ev,
		handlers: handlers,
		terminal: terminal,
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		a, ok := r.(*abort)
		if !ok || a.frame != f {
			panic(r)
		}
		if a.panicked {
			panic(a.value)
		}
		err = a.err
	}()

	f.step(0)
	return nil
}

// checkAffinity rejects events dispatched on the wrong side of the coordinator.
func (b *Bus) checkAffinity(ctx context.Context, ev Event) error {
	onCoordinator := b.coordinator.Owns(ctx)
	switch {
	case ev.IsAsync() && onCoordinator:
		b.stats.wrongThread.Add(1)
		return fmt.Errorf("%w: async event %s dispatched on coordinator %s",
			ErrWrongThread, ev.EventType(), b.coordinator.Name())
	case !ev.IsAsync() && !onCoordinator:
		b.stats.wrongThread.Add(1)
		return fmt.Errorf("%w: sync event %s dispatched off coordinator %s",
			ErrWrongThread, ev.EventType(), b.coordinator.Name())
	}
	return nil
}

// Post queues an asynchronous event for dispatch on the worker pool.
// The returned channel receives the dispatch result once it completes.
func (b *Bus) Post(ctx context.Context, ev Event, terminal TerminalFunc) (<-chan error, error) {
	if ev == nil {
		return nil, ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !ev.IsAsync() {
		b.stats.wrongThread.Add(1)
		return nil, fmt.Errorf("%w: sync event %s cannot be posted", ErrWrongThread, ev.EventType())
	}
	if !b.running.Load() {
		return nil, ErrBusNotRunning
	}

	done := make(chan error, 1)
	job := func(jobCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrTerminalPanic, r)
			}
		}()
		done <- b.Dispatch(b.coordinator.Detach(jobCtx), ev, terminal)
	}

	err := b.pool.Submit(b.coordinator.Detach(ctx), job)
	switch {
	case err == nil:
		b.stats.posted.Add(1)
		return done, nil
	case errors.Is(err, dispatch.ErrQueueFull):
		b.stats.dropped.Add(1)
		return nil, ErrQueueFull
	case errors.Is(err, dispatch.ErrNotRunning):
		return nil, ErrBusNotRunning
	default:
		return nil, err
	}
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Dispatched:       b.stats.dispatched.Load(),
		HandlersInvoked:  b.stats.invoked.Load(),
		HandlersSkipped:  b.stats.skipped.Load(),
		Yields:           b.stats.yields.Load(),
		HandlerErrors:    b.stats.errors.Load(),
		HandlerPanics:    b.stats.panics.Load(),
		FatalAborts:      b.stats.fatalAborts.Load(),
		TerminalFailures: b.stats.terminalFailures.Load(),
		WrongThread:      b.stats.wrongThread.Load(),
		Posted:           b.stats.posted.Load(),
		Dropped:          b.stats.dropped.Load(),
		Bakes:            b.registry.Bakes(),
		Registrations:    b.registry.Count(),
		QueueDepth:       b.pool.QueueDepth(),
	}
}
