package event

import (
	"context"
	"fmt"
)

// frame is the state of one Dispatch call: the baked handler snapshot taken
// when the dispatch began and the terminal action to run after it.
//
// A frame is walked by step, which recurses once per handler. A handler that
// yields makes the recursion happen inside its own call, so handlers suspended
// in Yield resume in reverse order once the terminal action has run.
type frame struct {
	bus      *Bus
	ctx      context.Context
	event    Event
	handlers []*Registration
	terminal TerminalFunc
}

// abort unwinds every handler between the failure point and the Dispatch
// call that owns frame. It carries either an error to return or a panic value
// to re-raise.
type abort struct {
	frame    *frame
	err      error
	panicked bool
	value    any
}

// Unwind marks abort as a value the dispatch executor must not capture.
func (*abort) Unwind() {}

// yielder is the Yielder handed to the handler at index.
type yielder struct {
	frame    *frame
	index    int
	advanced bool
}

// Yield runs the rest of the chain and returns once it has fully unwound.
func (y *yielder) Yield() error {
	if y.advanced {
		reg := y.frame.handlers[y.index]
		return fmt.Errorf("%w: handler %s on %s", ErrDoubleYield, reg.Name(), y.frame.event.EventType())
	}
	y.advanced = true
	y.frame.bus.stats.yields.Add(1)
	y.frame.step(y.index + 1)
	return nil
}

// step runs the handler at index i, then the remainder of the chain unless
// the handler already ran it by yielding.
func (f *frame) step(i int) {
	if i == len(f.handlers) {
		f.runTerminal()
		return
	}

	reg := f.handlers[i]
	if !reg.shouldRun(f.event) {
		f.bus.stats.skipped.Add(1)
		f.step(i + 1)
		return
	}

	y := &yielder{frame: f, index: i}
	f.bus.stats.invoked.Add(1)
	result := f.bus.executor.Execute(f.ctx, func(ctx context.Context) error {
		return reg.handler.Handle(ctx, f.event, y)
	})

	switch {
	case result.Panicked:
		if err, ok := result.PanicValue.(error); ok && isFatal(err) {
			f.fatal(err)
		}
		f.bus.stats.panics.Add(1)
		f.report(&PanicError{
			RegistrationID: reg.id,
			Handler:        reg.Name(),
			Owner:          reg.ownerName(),
			EventType:      f.event.EventType(),
			Value:          result.PanicValue,
			Stack:          string(result.PanicStack),
		}, reg)
	case result.Error != nil:
		if isFatal(result.Error) {
			f.fatal(result.Error)
		}
		f.bus.stats.errors.Add(1)
		f.report(&HandlerError{
			RegistrationID: reg.id,
			Handler:        reg.Name(),
			Owner:          reg.ownerName(),
			EventType:      f.event.EventType(),
			Err:            result.Error,
		}, reg)
	}

	if !y.advanced {
		y.advanced = true
		f.step(i + 1)
	}
}

// runTerminal invokes the terminal action. Any failure unwinds the whole frame.
func (f *frame) runTerminal() {
	var err error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if _, ok := r.(*abort); ok {
				panic(r)
			}
			f.bus.stats.terminalFailures.Add(1)
			panic(&abort{frame: f, panicked: true, value: r})
		}()
		err = f.terminal(f.ctx, f.event)
	}()

	if err != nil {
		f.bus.stats.terminalFailures.Add(1)
		panic(&abort{frame: f, err: err})
	}
}

// fatal unwinds the frame with a contract violation raised by a handler.
func (f *frame) fatal(err error) {
	f.bus.stats.fatalAborts.Add(1)
	panic(&abort{frame: f, err: err})
}

// report sends a captured handler failure to the exception policy.
func (f *frame) report(err error, reg *Registration) {
	msg := fmt.Sprintf("could not pass event %s to handler %s", f.event.EventType(), reg.Name())
	if owner := reg.ownerName(); owner != "" {
		msg += " of " + owner
	}
	safeReport(f.bus.policy, err, msg)
}
