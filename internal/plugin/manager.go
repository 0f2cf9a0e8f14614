package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dshills/yieldbus/internal/event"
)

// Manager manages the lifecycle of all plugins.
//
// Every lifecycle operation runs on the bus coordinator, the only goroutine
// allowed to touch plugin Lua states. Calls from other goroutines are queued
// to it and wait for the result, so the coordinator must be running.
type Manager struct {
	mu sync.RWMutex

	bus    *event.Bus
	logger *slog.Logger
	loader *Loader

	plugins   map[string]*Host
	loadOrder []string

	eventHandlers []EventHandler

	config ManagerConfig
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// PluginPaths are directories to search for plugins.
	PluginPaths []string

	// AutoEnable enables plugins as they load.
	AutoEnable bool

	// ExecutionTimeout bounds script loading and lifecycle hooks.
	ExecutionTimeout time.Duration

	// Settings overrides manifest config, keyed by plugin name.
	Settings map[string]map[string]any
}

// DefaultManagerConfig returns sensible default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PluginPaths:      DefaultPluginPaths(),
		AutoEnable:       true,
		ExecutionTimeout: 5 * time.Second,
	}
}

// EventHandler handles plugin manager events.
// Handlers must be non-blocking and must not call back into the Manager.
// Panics in handlers are recovered.
type EventHandler func(ev ManagerEvent)

// ManagerEvent represents a plugin manager event.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	Error  error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventPluginLoaded is emitted when a plugin is loaded.
	EventPluginLoaded ManagerEventType = iota
	// EventPluginUnloaded is emitted when a plugin is unloaded.
	EventPluginUnloaded
	// EventPluginEnabled is emitted when a plugin is enabled.
	EventPluginEnabled
	// EventPluginDisabled is emitted when a plugin is disabled.
	EventPluginDisabled
	// EventPluginReloaded is emitted when a plugin is reloaded.
	EventPluginReloaded
	// EventPluginError is emitted when a plugin operation fails.
	EventPluginError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventPluginLoaded:
		return "loaded"
	case EventPluginUnloaded:
		return "unloaded"
	case EventPluginEnabled:
		return "enabled"
	case EventPluginDisabled:
		return "disabled"
	case EventPluginReloaded:
		return "reloaded"
	case EventPluginError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates a new plugin manager for bus.
func NewManager(bus *event.Bus, config ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		bus:     bus,
		logger:  logger,
		loader:  NewLoader(WithPaths(config.PluginPaths...)),
		plugins: make(map[string]*Host),
		config:  config,
	}
}

// Discover searches for available plugins.
func (m *Manager) Discover() ([]*PluginInfo, error) {
	return m.loader.Discover()
}

// onCoordinator runs fn on the bus coordinator.
func (m *Manager) onCoordinator(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.bus.Coordinator().Call(ctx, fn)
}

// Load loads a plugin by name, enabling it when AutoEnable is set.
// Its hard dependencies must already be loaded.
func (m *Manager) Load(ctx context.Context, name string) (*Host, error) {
	info, err := m.loader.FindPlugin(name)
	if err != nil {
		return nil, err
	}
	if info.Error != nil {
		return nil, info.Error
	}

	var host *Host
	err = m.onCoordinator(ctx, func(ctx context.Context) error {
		var err error
		host, err = m.loadLocked(ctx, info.Manifest)
		return err
	})
	return host, err
}

// loadLocked loads one manifest. It runs on the coordinator.
func (m *Manager) loadLocked(ctx context.Context, manifest *Manifest) (*Host, error) {
	name := manifest.Name

	m.mu.RLock()
	_, exists := m.plugins[name]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	for _, dep := range manifest.Depend {
		if _, ok := m.Get(dep); !ok {
			return nil, fmt.Errorf("%w: %s requires %s", ErrDependencyNotFound, name, dep)
		}
	}

	host, err := NewHost(manifest, m.bus,
		WithHostLogger(m.logger),
		WithHostExecutionTimeout(m.config.ExecutionTimeout),
		WithHostConfig(m.config.Settings[name]),
	)
	if err != nil {
		return nil, err
	}
	if err := host.Load(ctx); err != nil {
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return nil, err
	}

	m.mu.Lock()
	m.plugins[name] = host
	m.loadOrder = append(m.loadOrder, name)
	m.mu.Unlock()
	m.emitEvent(ManagerEvent{Type: EventPluginLoaded, Plugin: name})

	if m.config.AutoEnable {
		if err := m.enableLocked(ctx, host); err != nil {
			return host, err
		}
	}
	return host, nil
}

// LoadAll discovers and loads every plugin in dependency order. Plugins
// whose dependencies fail are skipped. All failures are joined.
func (m *Manager) LoadAll(ctx context.Context) error {
	infos, err := m.loader.Discover()
	errs := []error{err}

	manifests := make(map[string]*Manifest)
	for _, info := range infos {
		if info.Error != nil {
			errs = append(errs, fmt.Errorf("plugin %q: %w", info.Name, info.Error))
			continue
		}
		manifests[info.Name] = info.Manifest
	}
	for _, host := range m.List() {
		manifests[host.Name()] = host.Manifest()
	}

	order, failed := loadOrder(manifests)
	for _, name := range slices.Sorted(maps.Keys(failed)) {
		errs = append(errs, failed[name])
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: name, Error: failed[name]})
	}

	err = m.onCoordinator(ctx, func(ctx context.Context) error {
		var loadErrs []error
		for _, name := range order {
			if _, loaded := m.Get(name); loaded {
				continue
			}
			if err := m.dependenciesUsable(manifests[name]); err != nil {
				loadErrs = append(loadErrs, err)
				continue
			}
			if _, err := m.loadLocked(ctx, manifests[name]); err != nil {
				loadErrs = append(loadErrs, fmt.Errorf("plugin %q: %w", name, err))
			}
		}
		return errors.Join(loadErrs...)
	})
	errs = append(errs, err)
	return errors.Join(errs...)
}

// dependenciesUsable reports an error when a hard dependency did not load.
func (m *Manager) dependenciesUsable(manifest *Manifest) error {
	for _, dep := range manifest.Depend {
		host, ok := m.Get(dep)
		if !ok || !host.State().IsUsable() {
			return fmt.Errorf("%w: %s requires %s", ErrDependencyNotFound, manifest.Name, dep)
		}
	}
	return nil
}

// Unload unloads a plugin. Plugins that hard-depend on it must be unloaded
// first.
func (m *Manager) Unload(ctx context.Context, name string) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		host, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
		}
		if deps := m.dependents(name); len(deps) > 0 {
			return fmt.Errorf("%w: %s is required by %v", ErrHasDependents, name, deps)
		}
		return m.unloadLocked(ctx, host)
	})
}

func (m *Manager) unloadLocked(ctx context.Context, host *Host) error {
	err := host.Unload(ctx)

	m.mu.Lock()
	delete(m.plugins, host.Name())
	m.loadOrder = slices.DeleteFunc(m.loadOrder, func(n string) bool { return n == host.Name() })
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventPluginUnloaded, Plugin: host.Name(), Error: err})
	return err
}

// UnloadAll unloads every plugin in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		m.mu.RLock()
		order := slices.Clone(m.loadOrder)
		m.mu.RUnlock()

		var errs []error
		for _, name := range slices.Backward(order) {
			if host, ok := m.Get(name); ok {
				if err := m.unloadLocked(ctx, host); err != nil {
					errs = append(errs, fmt.Errorf("plugin %q: %w", name, err))
				}
			}
		}
		return errors.Join(errs...)
	})
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.plugins[name]
	return host, ok
}

// List returns all loaded plugins in load order.
func (m *Manager) List() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hosts := make([]*Host, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		hosts = append(hosts, m.plugins[name])
	}
	return hosts
}

// ListEnabled returns enabled plugins in load order.
func (m *Manager) ListEnabled() []*Host {
	return slices.DeleteFunc(m.List(), func(h *Host) bool { return !h.Enabled() })
}

// Enable enables a loaded plugin. Its hard dependencies must be enabled.
func (m *Manager) Enable(ctx context.Context, name string) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		host, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
		}
		return m.enableLocked(ctx, host)
	})
}

func (m *Manager) enableLocked(ctx context.Context, host *Host) error {
	for _, dep := range host.Manifest().Depend {
		if d, ok := m.Get(dep); !ok || !d.Enabled() {
			err := fmt.Errorf("%w: %s requires %s", ErrDependencyNotEnabled, host.Name(), dep)
			m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: host.Name(), Error: err})
			return err
		}
	}
	if err := host.Enable(ctx); err != nil {
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: host.Name(), Error: err})
		return err
	}
	m.emitEvent(ManagerEvent{Type: EventPluginEnabled, Plugin: host.Name()})
	return nil
}

// Disable disables a plugin, first disabling enabled plugins that depend
// on it.
func (m *Manager) Disable(ctx context.Context, name string) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		host, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
		}
		return m.disableLocked(ctx, host)
	})
}

func (m *Manager) disableLocked(ctx context.Context, host *Host) error {
	var errs []error
	for _, dep := range m.dependents(host.Name()) {
		if d, ok := m.Get(dep); ok && d.Enabled() {
			if err := m.disableLocked(ctx, d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := host.Disable(ctx); err != nil {
		errs = append(errs, err)
	}
	m.emitEvent(ManagerEvent{Type: EventPluginDisabled, Plugin: host.Name()})
	return errors.Join(errs...)
}

// DisableAll disables every enabled plugin in reverse load order.
func (m *Manager) DisableAll(ctx context.Context) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		var errs []error
		for _, host := range slices.Backward(m.List()) {
			if host.Enabled() {
				if err := m.disableLocked(ctx, host); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	})
}

// Reload reloads a plugin's script, keeping it enabled if it was.
func (m *Manager) Reload(ctx context.Context, name string) error {
	return m.onCoordinator(ctx, func(ctx context.Context) error {
		host, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
		}
		if err := host.Reload(ctx); err != nil {
			m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
			return err
		}
		m.emitEvent(ManagerEvent{Type: EventPluginReloaded, Plugin: name})
		return nil
	})
}

// dependents returns loaded plugins that hard-depend on name, sorted.
func (m *Manager) dependents(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for other, host := range m.plugins {
		if slices.Contains(host.Manifest().Depend, name) {
			out = append(out, other)
		}
	}
	slices.Sort(out)
	return out
}

// Subscribe adds an event handler and returns a function that removes it.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// CountEnabled returns the number of enabled plugins.
func (m *Manager) CountEnabled() int {
	return len(m.ListEnabled())
}

// Errors returns plugins in error state with their errors.
func (m *Manager) Errors() map[string]error {
	errs := make(map[string]error)
	for _, host := range m.List() {
		if host.State() == StateError && host.Error() != nil {
			errs[host.Name()] = host.Error()
		}
	}
	return errs
}

// Loader returns the underlying loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// emitEvent sends an event to all handlers outside the lock, recovering
// handler panics.
func (m *Manager) emitEvent(ev ManagerEvent) {
	m.mu.RLock()
	handlers := slices.Clone(m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("plugin event handler panicked", "event", ev.Type.String(), "panic", r)
				}
			}()
			handler(ev)
		}()
	}
}
