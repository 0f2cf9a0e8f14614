package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned when a plugin directory has neither a
	// manifest nor a main.lua.
	ErrNoEntryPoint = errors.New("plugin has no entry point (plugin.yaml or main.lua)")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrAlreadyLoaded is returned when loading a plugin that is already loaded.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrNotLoaded is returned when using a plugin that is not loaded.
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrNotEnabled is returned when disabling a plugin that is not enabled.
	ErrNotEnabled = errors.New("plugin is not enabled")

	// ErrDependencyNotFound is returned when a required dependency is missing.
	ErrDependencyNotFound = errors.New("plugin dependency not found")

	// ErrCyclicDependency is returned when plugins have circular dependencies.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrDependencyNotEnabled is returned when enabling a plugin whose
	// dependency is not enabled.
	ErrDependencyNotEnabled = errors.New("plugin dependency is not enabled")

	// ErrHasDependents is returned when unloading a plugin other loaded
	// plugins depend on.
	ErrHasDependents = errors.New("plugin has loaded dependents")
)
