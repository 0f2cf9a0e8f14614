package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - Plugin is not loaded.
	StateUnloaded State = iota

	// StateLoaded - Plugin script has run but its handlers are not registered.
	StateLoaded

	// StateEnabling - on_enable is running.
	StateEnabling

	// StateEnabled - Plugin handlers are registered on the bus.
	StateEnabled

	// StateDisabling - on_disable is running.
	StateDisabling

	// StateError - Plugin failed to load or enable.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateEnabling:
		return "enabling"
	case StateEnabled:
		return "enabled"
	case StateDisabling:
		return "disabling"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the plugin is loaded or enabled.
func (s State) IsUsable() bool {
	return s == StateLoaded || s == StateEnabled
}
