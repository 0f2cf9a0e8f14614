package lua

import (
	"context"
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestBridgeToGoValue(t *testing.T) {
	state := newTestState(t)
	b := NewBridge(state.L)

	if err := state.DoString(context.Background(), `
		n = 3
		f = 1.5
		s = "x"
		arr = { "a", "b" }
		obj = { name = "alex", tags = { 1, 2 } }
		cyc = {}
		cyc.self = cyc
	`); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		global string
		want   any
	}{
		{"n", int64(3)},
		{"f", 1.5},
		{"s", "x"},
		{"arr", []any{"a", "b"}},
		{"obj", map[string]any{"name": "alex", "tags": []any{int64(1), int64(2)}}},
		{"cyc", map[string]any{"self": nil}},
		{"missing", nil},
	}
	for _, tt := range tests {
		got := b.ToGoValue(state.GetGlobal(tt.global))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ToGoValue(%s) = %#v, want %#v", tt.global, got, tt.want)
		}
	}
}

func TestBridgeToLuaValue(t *testing.T) {
	state := newTestState(t)
	b := NewBridge(state.L)

	type point struct{ X, Y int }

	state.SetGlobal("m", b.ToLuaValue(map[string]any{
		"list":   []string{"a", "b"},
		"n":      int64(7),
		"nested": map[string]any{"ok": true},
		"ptr":    &point{X: 1},
	}))

	err := state.DoString(context.Background(), `
		assert(m.list[2] == "b")
		assert(m.n == 7)
		assert(m.nested.ok == true)
		assert(type(m.ptr) == "userdata")
	`)
	if err != nil {
		t.Fatalf("converted table mismatch: %v", err)
	}

	if b.ToLuaValue(nil) != glua.LNil {
		t.Error("ToLuaValue(nil) should be nil")
	}
	if b.ToLuaValue([]int{4, 5}).(*glua.LTable).RawGetInt(2) != glua.LNumber(5) {
		t.Error("reflected slice conversion failed")
	}
}

func TestBridgeTableGetters(t *testing.T) {
	state := newTestState(t)
	b := NewBridge(state.L)

	tbl := state.L.NewTable()
	tbl.RawSetString("name", glua.LString("x"))
	tbl.RawSetString("flag", glua.LTrue)
	tbl.RawSetString("num", glua.LNumber(2))

	if s, ok := b.GetTableString(tbl, "name"); !ok || s != "x" {
		t.Error("GetTableString failed")
	}
	if v, ok := b.GetTableBool(tbl, "flag"); !ok || !v {
		t.Error("GetTableBool failed")
	}
	if n, ok := b.GetTableNumber(tbl, "num"); !ok || n != 2 {
		t.Error("GetTableNumber failed")
	}
	if _, ok := b.GetTableString(tbl, "num"); ok {
		t.Error("GetTableString should reject numbers")
	}
}
