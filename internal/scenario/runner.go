package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/eventtype"
	"github.com/dshills/yieldbus/internal/event/events"
)

// Runner fires scenarios on a bus.
type Runner struct {
	bus    *event.Bus
	logger *slog.Logger
}

// NewRunner creates a runner for bus.
func NewRunner(bus *event.Bus, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{bus: bus, logger: logger}
}

// Result is the outcome of one dispatch.
type Result struct {
	// Step is the 1-based index of the step in the scenario.
	Step int
	// Iteration counts repeats from 1.
	Iteration int

	Type      eventtype.Tag
	EventID   string
	Async     bool
	Err       error
	Cancelled bool
	// Applied reports that the terminal action saw a live event.
	Applied  bool
	Fields   map[string]any
	Duration time.Duration

	// Failures lists unmet expectations.
	Failures []string
}

// OK reports whether the dispatch met its expectations.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Report collects the results of a run.
type Report struct {
	Scenario string
	Results  []Result
}

// Failed returns the results with unmet expectations.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Run fires every step in order and waits for each to finish. ctx must not
// be bound to the coordinator; synchronous steps are handed to it. Run stops
// early only when ctx ends.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	report := &Report{Scenario: sc.Name}
	for i, step := range sc.Steps {
		for n := 1; n <= step.Times(); n++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res := r.fire(ctx, step)
			res.Step = i + 1
			res.Iteration = n
			r.log(ctx, res)
			report.Results = append(report.Results, res)
		}
	}
	return report, nil
}

func (r *Runner) fire(ctx context.Context, step Step) Result {
	res := Result{Type: step.Type}
	ev, err := step.Event()
	if err != nil {
		res.Err = err
		res.Failures = append(res.Failures, err.Error())
		return res
	}
	res.Async = ev.IsAsync()
	if mp, ok := ev.(event.MetadataProvider); ok {
		res.EventID = mp.EventMetadata().ID
	}

	// Async terminals run on a worker and may outlive a cancelled wait.
	var applied atomic.Bool
	terminal := func(ctx context.Context, ev event.Event) error {
		c, ok := ev.(event.Cancellable)
		applied.Store(!ok || !c.IsCancelled())
		return nil
	}

	start := time.Now()
	if ev.IsAsync() {
		res.Err = r.post(ctx, ev, terminal)
	} else {
		res.Err = r.bus.Coordinator().Call(ctx, func(ctx context.Context) error {
			return r.bus.Dispatch(ctx, ev, terminal)
		})
	}
	res.Duration = time.Since(start)
	res.Applied = applied.Load()
	if ctx.Err() != nil {
		// The event may still be in a worker's hands.
		res.Failures = append(res.Failures, ctx.Err().Error())
		return res
	}

	if c, ok := ev.(event.Cancellable); ok {
		res.Cancelled = c.IsCancelled()
	}
	if fields, err := events.Fields(ev); err == nil {
		res.Fields = fields
	}
	res.Failures = append(res.Failures, check(step.Expect, res)...)
	return res
}

func (r *Runner) post(ctx context.Context, ev event.Event, terminal event.TerminalFunc) error {
	done, err := r.bus.Post(ctx, ev, terminal)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// check compares a result against expect. Without an expect block any
// dispatch error is a failure.
func check(expect *Expect, res Result) []string {
	var failures []string
	if expect == nil || expect.Error == "" {
		if res.Err != nil {
			failures = append(failures, fmt.Sprintf("dispatch failed: %v", res.Err))
		}
	} else if res.Err == nil || !strings.Contains(res.Err.Error(), expect.Error) {
		failures = append(failures, fmt.Sprintf("expected error containing %q, got %v", expect.Error, res.Err))
	}
	if expect == nil {
		return failures
	}

	if expect.Cancelled != nil && *expect.Cancelled != res.Cancelled {
		failures = append(failures, fmt.Sprintf("cancelled = %v, want %v", res.Cancelled, *expect.Cancelled))
	}
	for _, name := range slices.Sorted(maps.Keys(expect.Fields)) {
		want := expect.Fields[name]
		got, ok := res.Fields[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("no field %q", name))
			continue
		}
		if !sameValue(got, want) {
			failures = append(failures, fmt.Sprintf("%s = %v, want %v", name, got, want))
		}
	}
	return failures
}

// sameValue compares decoded YAML values, treating numbers of any kind as
// equal when their values are.
func sameValue(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		return ok && slices.EqualFunc(av, bv, sameValue)
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if w, ok := bv[k]; !ok || !sameValue(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (r *Runner) log(ctx context.Context, res Result) {
	attrs := []any{
		"step", res.Step,
		"type", res.Type,
		"event_id", res.EventID,
		"cancelled", res.Cancelled,
		"applied", res.Applied,
		"duration", res.Duration,
	}
	if res.Iteration > 1 {
		attrs = append(attrs, "iteration", res.Iteration)
	}
	switch {
	case !res.OK():
		attrs = append(attrs, "failures", res.Failures)
		r.logger.Log(ctx, slog.LevelError, "scenario step failed", attrs...)
	case res.Err != nil:
		attrs = append(attrs, "error", res.Err)
		r.logger.Log(ctx, slog.LevelWarn, "scenario step returned expected error", attrs...)
	default:
		r.logger.Log(ctx, slog.LevelInfo, "scenario step", attrs...)
	}
}
