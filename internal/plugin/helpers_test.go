package plugin

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBus returns a bus with the event catalogue and a context bound to
// its coordinator.
func newTestBus(t *testing.T, policy event.ExceptionPolicy) (*event.Bus, context.Context) {
	t.Helper()
	if policy == nil {
		policy = event.NopPolicy{}
	}
	bus := event.NewBus(
		event.WithHierarchy(events.NewHierarchy()),
		event.WithExceptionPolicy(policy),
		event.WithLogger(discardLogger()),
	)
	return bus, bus.Coordinator().Bind(context.Background())
}

// writePlugin creates a directory plugin under root and returns its manifest.
func writePlugin(t *testing.T, root, name, manifest, script string) *Manifest {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if manifest == "" {
		manifest = "name: " + name + "\nversion: 1.0.0\n"
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultMain), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifestFromDir(dir)
	if err != nil {
		t.Fatalf("LoadManifestFromDir() error = %v", err)
	}
	return m
}

func breakEvent() *events.BlockBreak {
	return events.NewBlockBreak(events.Location{World: "world"}, "stone", "alex")
}
