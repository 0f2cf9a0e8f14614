package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/yieldbus/internal/config/loader"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "yieldbus.toml"

// Config is the complete yieldbus configuration.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Bus         BusConfig         `toml:"bus"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Plugins     PluginsConfig     `toml:"plugins"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`

	// AddSource includes the calling file and line in each record.
	AddSource bool `toml:"add_source"`
}

// BusConfig sizes the async dispatch pool.
type BusConfig struct {
	AsyncWorkers   int      `toml:"async_workers"`
	AsyncQueueSize int      `toml:"async_queue_size"`
	AsyncTimeout   Duration `toml:"async_timeout"`
}

// CoordinatorConfig names the coordinator and sizes its task queue.
type CoordinatorConfig struct {
	Name      string `toml:"name"`
	QueueSize int    `toml:"queue_size"`
}

// PluginsConfig controls plugin discovery and lifecycle.
type PluginsConfig struct {
	// Dirs are the plugin search paths. Empty means the default paths.
	Dirs []string `toml:"dirs"`

	AutoEnable       bool     `toml:"auto_enable"`
	Watch            bool     `toml:"watch"`
	ReloadDelay      Duration `toml:"reload_delay"`
	ExecutionTimeout Duration `toml:"execution_timeout"`

	// Settings override manifest config, keyed by plugin name.
	Settings map[string]map[string]any `toml:"settings"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Bus: BusConfig{
			AsyncWorkers:   4,
			AsyncQueueSize: 1024,
		},
		Coordinator: CoordinatorConfig{
			Name:      "main",
			QueueSize: 64,
		},
		Plugins: PluginsConfig{
			AutoEnable:       true,
			ReloadDelay:      Duration{250 * time.Millisecond},
			ExecutionTimeout: Duration{5 * time.Second},
		},
	}
}

// Load reads path over the defaults, then applies YIELDBUS_ environment
// overrides. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	return LoadWith(loader.NewTOMLLoader(path), loader.NewEnvLoader(loader.DefaultEnvPrefix))
}

// LoadWith builds a configuration from a file loader and an optional
// environment loader.
//
// Unknown keys in the file are errors. Unknown environment keys are ignored
// so unrelated YIELDBUS_ variables do not break startup.
func LoadWith(file *loader.TOMLLoader, env *loader.EnvLoader) (*Config, error) {
	cfg := Default()

	tree, err := file.Load()
	if err != nil {
		return nil, err
	}
	if err := decode(tree, cfg, true); err != nil {
		return nil, fmt.Errorf("%s: %w", file.Path(), err)
	}

	if env != nil {
		tree, err := env.Load()
		if err != nil {
			return nil, err
		}
		if err := decode(tree, cfg, false); err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode applies tree onto cfg. Keys absent from tree keep their value.
func decode(tree map[string]any, cfg *Config, strict bool) error {
	if len(tree) == 0 {
		return nil
	}
	data, err := loader.Encode(tree)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(cfg); err != nil {
		var missing *toml.StrictMissingError
		if errors.As(err, &missing) {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, strings.TrimSpace(missing.String()))
		}
		return err
	}
	return nil
}

// Validate checks every setting and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		fail("logging.format", "unknown format %q", c.Logging.Format)
	}

	if c.Bus.AsyncWorkers < 1 {
		fail("bus.async_workers", "must be at least 1, got %d", c.Bus.AsyncWorkers)
	}
	if c.Bus.AsyncQueueSize < 1 {
		fail("bus.async_queue_size", "must be at least 1, got %d", c.Bus.AsyncQueueSize)
	}
	if c.Bus.AsyncTimeout.Duration < 0 {
		fail("bus.async_timeout", "must not be negative")
	}

	if c.Coordinator.Name == "" {
		fail("coordinator.name", "must not be empty")
	}
	if c.Coordinator.QueueSize < 1 {
		fail("coordinator.queue_size", "must be at least 1, got %d", c.Coordinator.QueueSize)
	}

	if c.Plugins.ReloadDelay.Duration < 0 {
		fail("plugins.reload_delay", "must not be negative")
	}
	if c.Plugins.ExecutionTimeout.Duration <= 0 {
		fail("plugins.execution_timeout", "must be positive")
	}
	for i, dir := range c.Plugins.Dirs {
		if strings.TrimSpace(dir) == "" {
			fail(fmt.Sprintf("plugins.dirs[%d]", i), "must not be empty")
		}
	}

	return errors.Join(errs...)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
