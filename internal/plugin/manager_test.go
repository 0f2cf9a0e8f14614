package plugin

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dshills/yieldbus/internal/event"
)

const coreScript = `
events.on("block.break", { priority = events.LOW }, function(ev)
	ev:set("material", ev:get("material") .. "+core")
end)
`

const addonScript = `
events.on("block.break", function(ev)
	ev:set("material", ev:get("material") .. "+addon")
end)
`

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) handle(ev ManagerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type.String()+":"+ev.Plugin)
}

func (l *eventLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func newTestManager(t *testing.T, bus *event.Bus, root string, autoEnable bool) *Manager {
	t.Helper()
	return NewManager(bus, ManagerConfig{
		PluginPaths:      []string{root},
		AutoEnable:       autoEnable,
		ExecutionTimeout: time.Second,
	}, discardLogger())
}

func TestManagerLoadAllDependencyOrder(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	// addon sorts first but depends on core.
	writePlugin(t, root, "addon", "name: addon\nversion: 1.0.0\ndepend: [core]\n", addonScript)
	writePlugin(t, root, "core", "", coreScript)

	m := newTestManager(t, bus, root, true)
	var log eventLog
	m.Subscribe(log.handle)

	if err := m.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	var names []string
	for _, h := range m.List() {
		names = append(names, h.Name())
	}
	if !slices.Equal(names, []string{"core", "addon"}) {
		t.Errorf("load order = %v", names)
	}
	if m.Count() != 2 || m.CountEnabled() != 2 {
		t.Errorf("Count() = %d, CountEnabled() = %d", m.Count(), m.CountEnabled())
	}
	want := []string{"loaded:core", "enabled:core", "loaded:addon", "enabled:addon"}
	if !slices.Equal(log.get(), want) {
		t.Errorf("events = %v, want %v", log.get(), want)
	}

	ev := breakEvent()
	if err := bus.Dispatch(ctx, ev, nil); err != nil {
		t.Fatal(err)
	}
	if ev.Material != "stone+core+addon" {
		t.Errorf("Material = %q", ev.Material)
	}

	// Loading again skips what is already loaded.
	if err := m.LoadAll(ctx); err != nil {
		t.Errorf("second LoadAll() error = %v", err)
	}
}

func TestManagerLoadAllReportsFailures(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "good", "", coreScript)
	writePlugin(t, root, "broken", "", `not lua at all`)
	writePlugin(t, root, "orphan", "name: orphan\nversion: 1.0.0\ndepend: [missing]\n", ``)
	writePlugin(t, root, "child", "name: child\nversion: 1.0.0\ndepend: [broken]\n", ``)

	m := newTestManager(t, bus, root, true)
	err := m.LoadAll(ctx)
	if err == nil {
		t.Fatal("LoadAll() expected errors")
	}
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("LoadAll() error = %v, want ErrDependencyNotFound", err)
	}
	if _, ok := m.Get("good"); !ok {
		t.Error("healthy plugin should still load")
	}
	for _, name := range []string{"broken", "orphan", "child"} {
		if _, ok := m.Get(name); ok {
			t.Errorf("%s should not be loaded", name)
		}
	}
}

func TestManagerLoadSingle(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)
	writePlugin(t, root, "addon", "name: addon\nversion: 1.0.0\ndepend: [core]\n", addonScript)

	m := newTestManager(t, bus, root, false)

	if _, err := m.Load(ctx, "addon"); !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("Load(addon) before core error = %v, want ErrDependencyNotFound", err)
	}
	host, err := m.Load(ctx, "core")
	if err != nil {
		t.Fatalf("Load(core) error = %v", err)
	}
	if host.State() != StateLoaded {
		t.Errorf("State() = %v, want loaded without AutoEnable", host.State())
	}
	if _, err := m.Load(ctx, "core"); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load() error = %v, want ErrAlreadyLoaded", err)
	}
	if _, err := m.Load(ctx, "nope"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Load(nope) error = %v, want ErrPluginNotFound", err)
	}

	if _, err := m.Load(ctx, "addon"); err != nil {
		t.Fatalf("Load(addon) error = %v", err)
	}
	if err := m.Enable(ctx, "addon"); !errors.Is(err, ErrDependencyNotEnabled) {
		t.Errorf("Enable(addon) error = %v, want ErrDependencyNotEnabled", err)
	}
	if err := m.Enable(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if err := m.Enable(ctx, "addon"); err != nil {
		t.Fatalf("Enable(addon) error = %v", err)
	}
	if err := m.Enable(ctx, "nope"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Enable(nope) error = %v, want ErrNotLoaded", err)
	}
}

func TestManagerDisableCascades(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)
	writePlugin(t, root, "addon", "name: addon\nversion: 1.0.0\ndepend: [core]\n", addonScript)

	m := newTestManager(t, bus, root, true)
	if err := m.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m.Disable(ctx, "core"); err != nil {
		t.Fatalf("Disable(core) error = %v", err)
	}
	if m.CountEnabled() != 0 || bus.Registry().Count() != 0 {
		t.Errorf("CountEnabled() = %d, registrations = %d", m.CountEnabled(), bus.Registry().Count())
	}

	if err := m.Unload(ctx, "core"); !errors.Is(err, ErrHasDependents) {
		t.Errorf("Unload(core) error = %v, want ErrHasDependents", err)
	}
	if err := m.Unload(ctx, "addon"); err != nil {
		t.Fatalf("Unload(addon) error = %v", err)
	}
	if err := m.Unload(ctx, "core"); err != nil {
		t.Fatalf("Unload(core) error = %v", err)
	}
	if err := m.Unload(ctx, "core"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Unload() twice error = %v, want ErrNotLoaded", err)
	}
}

func TestManagerUnloadAllReverseOrder(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)
	writePlugin(t, root, "addon", "name: addon\nversion: 1.0.0\ndepend: [core]\n", addonScript)

	m := newTestManager(t, bus, root, true)
	if err := m.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}

	var log eventLog
	m.Subscribe(log.handle)
	if err := m.DisableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.UnloadAll(ctx); err != nil {
		t.Fatalf("UnloadAll() error = %v", err)
	}
	want := []string{"disabled:addon", "disabled:core", "unloaded:addon", "unloaded:core"}
	if !slices.Equal(log.get(), want) {
		t.Errorf("events = %v, want %v", log.get(), want)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after UnloadAll", m.Count())
	}
}

func TestManagerSettingsAndErrors(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "cfg", "name: cfg\nversion: 1.0.0\nconfig:\n  level: 1\n", `
		function on_enable(config)
			if config.level > 1 then error("level too high") end
		end
	`)

	m := NewManager(bus, ManagerConfig{
		PluginPaths: []string{root},
		AutoEnable:  true,
		Settings:    map[string]map[string]any{"cfg": {"level": 5}},
	}, discardLogger())

	if _, err := m.Load(ctx, "cfg"); err == nil {
		t.Fatal("Load() expected enable failure from overridden setting")
	}
	errs := m.Errors()
	if errs["cfg"] == nil {
		t.Errorf("Errors() = %v", errs)
	}
}

func TestManagerReload(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)

	m := newTestManager(t, bus, root, true)
	if err := m.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	var log eventLog
	m.Subscribe(log.handle)

	if err := m.Reload(ctx, "core"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !slices.Equal(log.get(), []string{"reloaded:core"}) {
		t.Errorf("events = %v", log.get())
	}
	if err := m.Reload(ctx, "nope"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Reload(nope) error = %v, want ErrNotLoaded", err)
	}
}

func TestManagerRunsOnCoordinator(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Coordinator().Run(runCtx) }()

	m := newTestManager(t, bus, root, true)
	// An unbound context is queued to the coordinator.
	if err := m.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if m.CountEnabled() != 1 {
		t.Errorf("CountEnabled() = %d", m.CountEnabled())
	}

	done := make(chan error, 1)
	if err := bus.Coordinator().Submit(context.Background(), func(ctx context.Context) {
		ev := breakEvent()
		err := bus.Dispatch(ctx, ev, nil)
		if err == nil && ev.Material != "stone+core" {
			err = errors.New("plugin handler did not run: " + ev.Material)
		}
		done <- err
	}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch on coordinator timed out")
	}
}

func TestManagerSubscribe(t *testing.T) {
	bus, ctx := newTestBus(t, nil)
	root := t.TempDir()
	writePlugin(t, root, "core", "", coreScript)
	m := newTestManager(t, bus, root, false)

	var log eventLog
	unsubscribe := m.Subscribe(log.handle)
	m.Subscribe(func(ManagerEvent) { panic("listener bug") })
	m.Subscribe(nil)()

	if _, err := m.Load(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	if err := m.Enable(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(log.get(), []string{"loaded:core"}) {
		t.Errorf("events = %v", log.get())
	}
}

func TestManagerEventTypeString(t *testing.T) {
	tests := map[ManagerEventType]string{
		EventPluginLoaded:     "loaded",
		EventPluginUnloaded:   "unloaded",
		EventPluginEnabled:    "enabled",
		EventPluginDisabled:   "disabled",
		EventPluginReloaded:   "reloaded",
		EventPluginError:      "error",
		ManagerEventType(100): "unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}
