// Package config loads the yieldbus configuration.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//	┌──────────────────────────────┐
//	│  3. YIELDBUS_* environment   │  ← Highest priority
//	├──────────────────────────────┤
//	│  2. yieldbus.toml            │
//	├──────────────────────────────┤
//	│  1. Built-in defaults        │  ← Lowest priority
//	└──────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
//
// # File Format
//
//	[logging]
//	level = "debug"
//	format = "json"
//
//	[bus]
//	async_workers = 8
//	async_queue_size = 2048
//	async_timeout = "30s"
//
//	[coordinator]
//	name = "main"
//	queue_size = 64
//
//	[plugins]
//	dirs = ["plugins"]
//	auto_enable = true
//	watch = true
//	reload_delay = "250ms"
//	execution_timeout = "5s"
//
//	[plugins.settings.protect]
//	protected = ["bedrock"]
//
// # Environment
//
// YIELDBUS_LOG_LEVEL, YIELDBUS_LOG_FORMAT, YIELDBUS_ASYNC_WORKERS,
// YIELDBUS_ASYNC_QUEUE, YIELDBUS_COORDINATOR, YIELDBUS_PLUGIN_DIR (a path
// list) and YIELDBUS_PLUGIN_WATCH are mapped directly. Other variables
// follow YIELDBUS_<SECTION>_<KEY>, e.g. YIELDBUS_BUS_ASYNC_TIMEOUT=10s.
package config
