// Package scenario runs declarative event scripts against a bus.
//
// A scenario is a YAML file listing events to fire in order:
//
//	name: griefing
//	events:
//	  - type: block.break
//	    data:
//	      material: bedrock
//	      player: alex
//	    expect:
//	      cancelled: true
//	  - type: player.chat
//	    async: true
//	    data: {player: alex, message: hello}
//
// Synchronous events are dispatched on the bus coordinator; asynchronous
// events are posted to the worker pool and awaited before the next step.
// Each step's terminal action records whether the event was still live
// when every handler had run.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/eventtype"
	"github.com/dshills/yieldbus/internal/event/events"
	"gopkg.in/yaml.v3"
)

// DefaultSource is the event source used when a step names none.
const DefaultSource = "scenario"

// Errors returned when loading scenarios.
var (
	ErrNoEvents      = errors.New("scenario has no events")
	ErrMissingType   = errors.New("step has no event type")
	ErrAsyncMismatch = errors.New("step async flag does not match event type")
)

// Scenario is a named list of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"events"`

	path string
}

// Step fires one event.
type Step struct {
	// Type is the concrete event type tag.
	Type eventtype.Tag `yaml:"type"`

	// Source overrides DefaultSource.
	Source string `yaml:"source,omitempty"`

	// Async, when set, must agree with the event type.
	Async *bool `yaml:"async,omitempty"`

	// Repeat fires the event this many times. Zero means once.
	Repeat int `yaml:"repeat,omitempty"`

	// Data fills the event payload by field name.
	Data map[string]any `yaml:"data,omitempty"`

	// Expect is checked after each dispatch.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the event state a step should end in.
type Expect struct {
	// Cancelled is compared against the final cancellation state.
	Cancelled *bool `yaml:"cancelled,omitempty"`

	// Fields are compared against the final payload. Unlisted fields are
	// not checked.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Error, when set, must be contained in the dispatch error.
	Error string `yaml:"error,omitempty"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.path = path
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse parses scenario YAML and checks every step against the event
// catalogue.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Path returns the file the scenario was loaded from.
func (s *Scenario) Path() string {
	return s.path
}

// Validate checks that every step names a concrete event type whose payload
// accepts the step's data.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoEvents
	}
	var errs []error
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) validate() error {
	if s.Type == "" {
		return ErrMissingType
	}
	if s.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative, got %d", s.Repeat)
	}
	ev, err := s.Event()
	if err != nil {
		return err
	}
	if s.Async != nil && *s.Async != ev.IsAsync() {
		return fmt.Errorf("%w: %s is async=%v", ErrAsyncMismatch, s.Type, ev.IsAsync())
	}
	if s.Expect != nil && s.Expect.Cancelled != nil {
		if _, ok := ev.(event.Cancellable); !ok {
			return fmt.Errorf("%s is not cancellable", s.Type)
		}
	}
	return nil
}

// Event decodes a fresh event for the step.
func (s Step) Event() (event.Event, error) {
	source := s.Source
	if source == "" {
		source = DefaultSource
	}
	return events.Decode(s.Type, source, s.Data)
}

// Times returns how often the step fires.
func (s Step) Times() int {
	return max(s.Repeat, 1)
}
