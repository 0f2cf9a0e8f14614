package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/yieldbus/internal/event"
	plua "github.com/dshills/yieldbus/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// Lua lifecycle hooks. Both are optional.
const (
	hookEnable  = "on_enable"
	hookDisable = "on_disable"
)

// Host manages a single plugin's Lua state and lifecycle.
//
// A Host is the event.Owner of every handler its script declares, so
// disabling the host silences them even inside a dispatch that already
// resolved its handler sequence.
//
// Lifecycle methods run Lua and must be called on the coordinator.
type Host struct {
	mu sync.RWMutex

	name     string
	manifest *Manifest
	bus      *event.Bus
	logger   *slog.Logger

	state *plua.State
	api   *plua.EventAPI

	pluginState State
	err         error
	enabled     atomic.Bool
	loadedAt    time.Time

	config           map[string]any
	executionTimeout time.Duration
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostExecutionTimeout sets the deadline for loading and lifecycle hooks.
func WithHostExecutionTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executionTimeout = d
	}
}

// WithHostConfig overrides entries of the manifest's default config.
func WithHostConfig(config map[string]any) HostOption {
	return func(h *Host) {
		maps.Copy(h.config, config)
	}
}

// WithHostLogger sets the logger. Plugin log output is tagged with the
// plugin name.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHost creates a new plugin host for the given manifest.
func NewHost(manifest *Manifest, bus *event.Bus, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}

	h := &Host{
		name:             manifest.Name,
		manifest:         manifest,
		bus:              bus,
		logger:           slog.Default(),
		pluginState:      StateUnloaded,
		config:           maps.Clone(manifest.Config),
		executionTimeout: plua.DefaultExecutionTimeout,
	}
	if h.config == nil {
		h.config = make(map[string]any)
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("plugin", h.name)
	return h, nil
}

// Name implements event.Owner.
func (h *Host) Name() string {
	return h.name
}

// Enabled implements event.Owner.
func (h *Host) Enabled() bool {
	return h.enabled.Load()
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// State returns the current plugin state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pluginState
}

// Error returns the error that put the plugin in StateError.
func (h *Host) Error() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// LoadedAt returns when the script last loaded.
func (h *Host) LoadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loadedAt
}

// Config returns a copy of the plugin settings.
func (h *Host) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.config)
}

// Registrations returns the handlers the plugin has on the bus.
func (h *Host) Registrations() []*event.Registration {
	return h.bus.Registry().ByOwner(h)
}

// Load creates the Lua state and runs the entry script. Handlers the script
// declares are registered by Enable.
func (h *Host) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateUnloaded && h.pluginState != StateError {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, h.name)
	}
	h.closeStateLocked()

	state, err := plua.NewState(plua.WithExecutionTimeout(h.executionTimeout))
	if err != nil {
		return h.failLocked(fmt.Errorf("create lua state: %w", err))
	}

	api := plua.NewEventAPI(state, h.bus, h, h.logger)
	api.Install()
	plua.InstallLog(state, h.logger)
	state.SetGlobal("plugin", h.infoTable(state))

	if err := state.DoFile(ctx, h.manifest.MainPath()); err != nil {
		state.Close()
		return h.failLocked(fmt.Errorf("load %s: %w", h.manifest.Main, err))
	}

	h.state = state
	h.api = api
	h.pluginState = StateLoaded
	h.err = nil
	h.loadedAt = time.Now()
	h.logger.Debug("plugin loaded", "handlers", len(api.Registrations()))
	return nil
}

// infoTable builds the read-only plugin global.
func (h *Host) infoTable(state *plua.State) *lua.LTable {
	bridge := plua.NewBridge(state.L)
	t := state.L.NewTable()
	t.RawSetString("name", lua.LString(h.manifest.Name))
	t.RawSetString("version", lua.LString(h.manifest.Version))
	t.RawSetString("dir", lua.LString(h.manifest.Path()))
	t.RawSetString("config", bridge.ToLuaValue(h.config))
	return t
}

// Enable runs on_enable and registers every declared handler. Registration
// is all or nothing.
func (h *Host) Enable(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateLoaded {
		return fmt.Errorf("%w: %s is %s", ErrNotLoaded, h.name, h.pluginState)
	}
	h.pluginState = StateEnabling

	if h.state.HasFunction(hookEnable) {
		cfg := plua.NewBridge(h.state.L).ToLuaValue(h.config)
		if _, err := h.state.Call(ctx, hookEnable, cfg); err != nil {
			return h.failLocked(fmt.Errorf("%s: %w", hookEnable, err))
		}
	}

	// Owner must report enabled before the first event can reach a handler.
	h.enabled.Store(true)
	regs, err := h.bus.RegisterListener(h, h.api)
	if err != nil {
		h.enabled.Store(false)
		return h.failLocked(err)
	}
	h.api.SetLive(true)

	h.pluginState = StateEnabled
	h.logger.Info("plugin enabled", "version", h.manifest.Version, "handlers", len(regs))
	return nil
}

// Disable unregisters the plugin's handlers and runs on_disable. Handlers
// stop firing immediately, including later stages of a dispatch in flight.
func (h *Host) Disable(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disableLocked(ctx)
}

func (h *Host) disableLocked(ctx context.Context) error {
	if h.pluginState != StateEnabled {
		return fmt.Errorf("%w: %s", ErrNotEnabled, h.name)
	}
	h.pluginState = StateDisabling
	h.enabled.Store(false)
	h.api.SetLive(false)

	var hookErr error
	if h.state.HasFunction(hookDisable) {
		if _, err := h.state.Call(ctx, hookDisable); err != nil {
			hookErr = fmt.Errorf("%s: %w", hookDisable, err)
			h.logger.Warn("plugin disable hook failed", "error", err)
		}
	}

	n := h.bus.UnregisterAll(h)
	h.pluginState = StateLoaded
	h.logger.Info("plugin disabled", "handlers", n)
	return hookErr
}

// Unload disables the plugin if needed and closes its Lua state.
func (h *Host) Unload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState == StateUnloaded {
		return fmt.Errorf("%w: %s", ErrNotLoaded, h.name)
	}

	var err error
	if h.pluginState == StateEnabled {
		err = h.disableLocked(ctx)
	}
	// A failed enable can leave registrations behind.
	h.enabled.Store(false)
	h.bus.UnregisterAll(h)

	h.closeStateLocked()
	h.pluginState = StateUnloaded
	return err
}

func (h *Host) closeStateLocked() {
	if h.api != nil {
		h.api.Detach()
		h.api = nil
	}
	if h.state != nil {
		h.state.Close()
		h.state = nil
	}
}

// Reload unloads and loads the script again, restoring the enabled state.
func (h *Host) Reload(ctx context.Context) error {
	wasEnabled := h.Enabled()
	if h.State() != StateUnloaded {
		if err := h.Unload(ctx); err != nil {
			h.logger.Warn("plugin unload during reload failed", "error", err)
		}
	}
	if err := h.Load(ctx); err != nil {
		return err
	}
	if wasEnabled {
		return h.Enable(ctx)
	}
	return nil
}

// failLocked records err and moves the plugin to StateError.
func (h *Host) failLocked(err error) error {
	h.pluginState = StateError
	h.err = err
	h.logger.Error("plugin failed", "error", err)
	return err
}
