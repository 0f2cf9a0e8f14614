package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script runs past its deadline.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrFunctionNotFound is returned when calling a global that is not a function.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrAPIClosed is returned when registering handlers after the API was detached.
	ErrAPIClosed = errors.New("lua event api is detached")
)
