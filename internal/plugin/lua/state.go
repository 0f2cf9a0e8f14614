package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds script loading and lifecycle calls.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with sandboxing and execution deadlines.
//
// An LState is not goroutine-safe. Plugins only touch their state from the
// coordinator, which also runs every synchronous handler, so all access is
// serialized there. The mutex guards the entry points used outside dispatch;
// Invoke does not take it because handlers may run while a script is
// executing on the same goroutine.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	sandbox          *Sandbox
	closed           atomic.Bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline applied to DoFile, DoString and Call.
// A zero duration disables the deadline.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		IncludeGoStackTrace: false,
	})
	state.L = L

	openSafeLibraries(L)

	state.sandbox = NewSandbox(L)
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens the Lua standard libraries plugins may use.
// io, os and debug are never opened.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrStateClosed
	}
	return s.withDeadline(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (s *State) DoString(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrStateClosed
	}
	return s.withDeadline(ctx, func() error {
		return s.L.DoString(code)
	})
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	if s.closed.Load() {
		return false
	}
	_, ok := s.L.GetGlobal(name).(*lua.LFunction)
	return ok
}

// Call calls the global function name and returns its results.
func (s *State) Call(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrStateClosed
	}

	fn, ok := s.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	var results []lua.LValue
	err := s.withDeadline(ctx, func() error {
		top := s.L.GetTop()
		if err := s.L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, args...); err != nil {
			return err
		}
		n := s.L.GetTop() - top
		results = make([]lua.LValue, n)
		for i := range n {
			results[i] = s.L.Get(top + i + 1)
		}
		s.L.Pop(n)
		return nil
	})
	return results, err
}

// Invoke calls fn in protected mode, discarding results.
//
// Invoke is the entry point for event handlers and does not take the state
// lock; callers must already be on the goroutine that owns the state.
func (s *State) Invoke(fn *lua.LFunction, args ...lua.LValue) error {
	if s.closed.Load() {
		return ErrStateClosed
	}
	return s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

// withDeadline runs fn with the execution deadline installed on the state.
func (s *State) withDeadline(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	err := fn()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	}
	return err
}

// GetGlobal returns a global variable.
func (s *State) GetGlobal(name string) lua.LValue {
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.L.SetGlobal(name, value)
}

// PreloadModule makes a module available to require and allows it through
// the sandbox.
func (s *State) PreloadModule(name string, loader lua.LGFunction) {
	s.sandbox.Allow(name)
	s.L.PreloadModule(name, loader)
}

// RegisterModule installs a table of functions as a preloaded module and as
// a global of the same name. Dotted names are only preloaded.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction, fields map[string]lua.LValue) *lua.LTable {
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	for k, v := range fields {
		mod.RawSetString(k, v)
	}
	s.PreloadModule(name, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
	if !strings.Contains(name, ".") {
		s.L.SetGlobal(name, mod)
	}
	return mod
}

// Sandbox returns the sandbox.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed reports whether the state has been closed.
func (s *State) IsClosed() bool {
	return s.closed.Load()
}

// Close releases the Lua state. It is safe to call more than once.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return
	}
	s.L.Close()
}
