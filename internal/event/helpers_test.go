package event

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

type testEvent struct {
	Base
	CancelState
}

func newTestHierarchy() *eventtype.Hierarchy {
	h := eventtype.NewHierarchy()
	h.MustDefine("event")
	h.MustDefine("cancellable", "event")
	h.MustDefine("block", "event")
	h.MustDefine("block.break", "block", "cancellable")
	h.MustDefine("block.place", "block", "cancellable")
	h.MustDefine("player", "event")
	h.MustDefine("player.chat", "player", "cancellable")
	return h
}

func syncEvent(tag eventtype.Tag) *testEvent {
	return &testEvent{Base: NewBase(tag, "test")}
}

func asyncEvent(tag eventtype.Tag) *testEvent {
	return &testEvent{Base: NewAsyncBase(tag, "test")}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBus returns a bus over the test hierarchy and a context bound to its
// coordinator.
func newTestBus(t *testing.T, opts ...BusOption) (*Bus, context.Context) {
	t.Helper()
	base := []BusOption{
		WithHierarchy(newTestHierarchy()),
		WithLogger(discardLogger()),
	}
	bus := NewBus(append(base, opts...)...)
	return bus, bus.Coordinator().Bind(context.Background())
}

type trace struct {
	mu    sync.Mutex
	items []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.items = append(tr.items, s)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return slices.Clone(tr.items)
}

func (tr *trace) expect(t *testing.T, want ...string) {
	t.Helper()
	if got := tr.get(); !slices.Equal(got, want) {
		t.Errorf("trace = %q, want %q", got, want)
	}
}

// emit returns a handler that records s and does not yield.
func emit(tr *trace, s string) HandlerFunc {
	return func(ctx context.Context, ev Event, y Yielder) error {
		tr.add(s)
		return nil
	}
}

// wrap returns a handler that records before, yields, then records after.
func wrap(tr *trace, before, after string) HandlerFunc {
	return func(ctx context.Context, ev Event, y Yielder) error {
		tr.add(before)
		if err := y.Yield(); err != nil {
			return err
		}
		tr.add(after)
		return nil
	}
}

// body returns a terminal action that records "body".
func body(tr *trace) TerminalFunc {
	return func(ctx context.Context, ev Event) error {
		tr.add("body")
		return nil
	}
}

// recordingPolicy counts reports and optionally mirrors them into a trace.
type recordingPolicy struct {
	mu       sync.Mutex
	errs     []error
	messages []string
	trace    *trace
}

func (p *recordingPolicy) Report(err error, message string) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.messages = append(p.messages, message)
	p.mu.Unlock()
	if p.trace != nil {
		p.trace.add("report")
	}
}

func (p *recordingPolicy) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.errs)
}

func mustOn(t *testing.T, bus *Bus, tag eventtype.Tag, fn HandlerFunc, opts ...RegistrationOption) *Registration {
	t.Helper()
	reg, err := bus.On(tag, fn, opts...)
	if err != nil {
		t.Fatalf("On(%s) failed: %v", tag, err)
	}
	return reg
}
