package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates Run was called while a run is active.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrScenarioFailed indicates a scenario dispatch missed its expectations.
	ErrScenarioFailed = errors.New("scenario failed")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ComponentError reports a failure of a running component.
type ComponentError struct {
	Component string // e.g. "plugins", "watcher"
	Action    string
	Err       error
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
