package lua

import (
	"context"
	"strings"
	"testing"
)

func TestSandboxRemovesLoaders(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		err := state.DoString(context.Background(), name+`("x")`)
		if err == nil {
			t.Errorf("%s should not be callable", name)
		}
	}
}

func TestSandboxNoSystemLibraries(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"io", "os", "debug"} {
		if err := state.DoString(context.Background(), `assert(`+name+` == nil)`); err != nil {
			t.Errorf("%s should not be opened: %v", name, err)
		}
	}
}

func TestSandboxRequire(t *testing.T) {
	state := newTestState(t)

	tests := []struct {
		module  string
		allowed bool
	}{
		{"string", true},
		{"table", true},
		{"math", true},
		{"io", false},
		{"os", false},
		{"socket", false},
	}
	for _, tt := range tests {
		err := state.DoString(context.Background(), `require("`+tt.module+`")`)
		if tt.allowed && err != nil {
			t.Errorf("require(%q) error = %v", tt.module, err)
		}
		if !tt.allowed {
			if err == nil {
				t.Errorf("require(%q) should fail", tt.module)
			} else if !strings.Contains(err.Error(), "not available") {
				t.Errorf("require(%q) unexpected error %v", tt.module, err)
			}
		}
	}
}

func TestSandboxPrint(t *testing.T) {
	state := newTestState(t)

	var lines []string
	state.Sandbox().SetPrinter(func(s string) { lines = append(lines, s) })

	if err := state.DoString(context.Background(), `print("a", 1, true)`); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "a\t1\ttrue" {
		t.Errorf("print captured %q", lines)
	}

	state.Sandbox().SetPrinter(nil)
	if err := state.DoString(context.Background(), `print("dropped")`); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Error("print should be discarded without a printer")
	}
}
