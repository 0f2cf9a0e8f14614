// Package event provides the synchronous, priority-ordered event dispatch core.
//
// Every domain occurrence (a block broken, a player joining, an entity
// damaged) is represented as an Event and passed to Bus.Dispatch together with
// an optional terminal action, the event's default effect. The bus resolves the
// handlers that apply to the event's type, runs them in priority order, runs
// the terminal action once, and unwinds.
//
// # Architecture
//
//	                  ┌──────────────────────────────────────┐
//	                  │                 Bus                   │
//	                  │  - Thread-affinity check              │
//	                  │  - Yield protocol (frame/step)        │
//	                  │  - Exception policy                   │
//	                  └──────────────────────────────────────┘
//	                                   │
//	        ┌──────────────────────────┼──────────────────────────┐
//	        ▼                          ▼                          ▼
//	┌───────────────┐        ┌──────────────────┐       ┌──────────────────┐
//	│   Registry    │        │   Coordinator    │       │  dispatch.Pool   │
//	│ - HandlerList │        │ - context mark   │       │ - async workers  │
//	│ - bake cache  │        │ - task loop      │       │ - bounded queue  │
//	└───────────────┘        └──────────────────┘       └──────────────────┘
//
// # Event Types
//
// Event types are tags in an explicit hierarchy (see package eventtype).
// A handler registered for a type also fires for every descendant type:
//
//	h := eventtype.NewHierarchy()
//	h.MustDefine("event")
//	h.MustDefine("block", "event")
//	h.MustDefine("block.break", "block")
//
// # Ordering
//
// Handlers run by ascending priority, LOWEST first and MONITOR last. Among
// handlers of equal priority, those bound to the more specific type run first,
// then registration order decides.
//
// The sequence for a type is baked once and cached until a registration for
// that type or any ancestor changes. A dispatch keeps the sequence it started
// with even if registrations change while it runs.
//
// # Yield
//
// Each handler receives a Yielder. Calling Yield runs every later handler and
// the terminal action before returning, so a handler can wrap the default
// effect:
//
//	bus.On("block.break", func(ctx context.Context, ev event.Event, y event.Yielder) error {
//	    log.Println("before")
//	    if err := y.Yield(); err != nil {
//	        return err
//	    }
//	    log.Println("after")
//	    return nil
//	})
//
// A handler that never yields is advanced past once it returns. A second
// Yield fails with ErrDoubleYield.
//
// Handlers must not recover panics that pass through Yield; the bus uses them
// to unwind when the terminal action fails.
//
// # Errors
//
// Errors and panics from handlers are reported to the ExceptionPolicy and the
// dispatch continues. ErrDoubleYield and ErrWrongThread returned by a handler
// abort the dispatch and reach the caller. The terminal action's error is
// returned unchanged and is never reported.
//
// # Thread Affinity
//
// Synchronous events must be dispatched with a context bound to the bus
// Coordinator, asynchronous events with one that is not:
//
//	go bus.Coordinator().Run(ctx)
//	err := bus.Coordinator().Call(ctx, func(ctx context.Context) error {
//	    return bus.Dispatch(ctx, ev, nil)
//	})
//
// Asynchronous events can also be queued with Post, which dispatches them on
// the bus worker pool.
package event
