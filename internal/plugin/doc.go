// Package plugin loads Lua plugins that handle bus events.
//
// A plugin is a directory with a plugin.yaml manifest and an entry script,
// or a single name.lua file in a search path:
//
//	plugins/
//	├── spawn-protect/
//	│   ├── plugin.yaml
//	│   └── main.lua
//	└── greeter.lua
//
// Each loaded plugin gets its own sandboxed Lua state and a Host, which is
// the event.Owner of every handler the script declares. Enabling a plugin
// registers its handlers in one step; disabling it unregisters them and
// silences any that a dispatch in progress has yet to reach.
//
// # Lifecycle
//
//	unloaded --Load--> loaded --Enable--> enabled
//	    ^                 ^                  |
//	    +-----Unload------+-----Disable------+
//
// The script's top level runs at Load. The optional globals on_enable(config)
// and on_disable() run at the matching transitions. The plugin global holds
// the name, version, directory and merged config.
//
// # Manager
//
// The Manager discovers plugins, loads them in dependency order
// (depend and softdepend), and runs every lifecycle operation on the bus
// coordinator:
//
//	mgr := plugin.NewManager(bus, plugin.DefaultManagerConfig(), logger)
//	if err := mgr.LoadAll(ctx); err != nil {
//	    logger.Warn("some plugins failed to load", "error", err)
//	}
//	defer mgr.UnloadAll(context.Background())
//
// A Watcher reloads plugins whose entry scripts change on disk.
package plugin
