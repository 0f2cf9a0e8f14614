package lua

import (
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// builtinModules may always be required.
var builtinModules = []string{"string", "table", "math"}

// Sandbox restricts what a plugin script can reach.
//
// It removes the loaders that read code from disk or strings, limits
// require to builtin and preloaded modules, and redirects print.
type Sandbox struct {
	L *lua.LState

	mu      sync.RWMutex
	allowed map[string]bool
	printer func(string)
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	s := &Sandbox{
		L:       L,
		allowed: make(map[string]bool),
	}
	for _, name := range builtinModules {
		s.allowed[name] = true
	}
	return s
}

// Install applies the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installPrint()
	s.installRequire()
}

// Allow permits require of a module by name.
func (s *Sandbox) Allow(name string) {
	s.mu.Lock()
	s.allowed[name] = true
	s.mu.Unlock()
}

// IsAllowed reports whether require(name) is permitted.
func (s *Sandbox) IsAllowed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed[name]
}

// SetPrinter redirects print output. A nil printer discards it.
func (s *Sandbox) SetPrinter(fn func(string)) {
	s.mu.Lock()
	s.printer = fn
	s.mu.Unlock()
}

func (s *Sandbox) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}

		s.mu.RLock()
		printer := s.printer
		s.mu.RUnlock()
		if printer != nil {
			printer(strings.Join(parts, "\t"))
		}
		return 0
	}))
}

// installRequire clears the disk search paths and replaces require with a
// whitelist check in front of the original.
func (s *Sandbox) installRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	original := s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !s.IsAllowed(name) {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}
