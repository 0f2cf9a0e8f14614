package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/yieldbus/internal/event/events"
)

const griefScenario = `
name: griefing
events:
  - type: block.break
    data:
      material: bedrock
      player: alex
    expect:
      cancelled: true
  - type: block.break
    repeat: 2
    data: {material: dirt, player: alex}
    expect:
      cancelled: false
      fields: {material: dirt}
  - type: player.chat
    async: true
    data: {player: alex, message: hello}
    expect:
      fields: {message: HELLO}
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(griefScenario))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sc.Name != "griefing" || len(sc.Steps) != 3 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if sc.Steps[0].Type != events.TypeBlockBreak {
		t.Errorf("step 1 type = %s", sc.Steps[0].Type)
	}
	if sc.Steps[1].Times() != 2 || sc.Steps[0].Times() != 1 {
		t.Error("unexpected repeat counts")
	}
	if sc.Steps[2].Async == nil || !*sc.Steps[2].Async {
		t.Error("expected async flag on chat step")
	}

	ev, err := sc.Steps[0].Event()
	if err != nil {
		t.Fatalf("Event failed: %v", err)
	}
	if ev.(*events.BlockBreak).EventMetadata().Source != DefaultSource {
		t.Error("expected default source")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty", "name: x\n", ErrNoEvents},
		{"missing type", "events:\n  - data: {}\n", ErrMissingType},
		{"abstract type", "events:\n  - type: block\n", events.ErrNotConcrete},
		{"async mismatch", "events:\n  - type: block.break\n    async: true\n", ErrAsyncMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("events:\n  - type: player.join\n    expect: {cancelled: true}\n")); err == nil {
		t.Error("expected error for cancel expectation on non-cancellable event")
	}
	if _, err := Parse([]byte("events:\n  - type: block.break\n    colour: red\n")); err == nil {
		t.Error("expected error for unknown step key")
	}
	if _, err := Parse([]byte("events:\n  - type: entity.damage\n    data: {damage: lots}\n")); err == nil {
		t.Error("expected error for ill-typed data")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte("events:\n  - type: player.join\n    data: {player: alex}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sc.Path() != path || sc.Name != path {
		t.Errorf("unexpected name/path %q %q", sc.Name, sc.Path())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
