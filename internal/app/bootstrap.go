package app

import (
	"path/filepath"
	"slices"

	"github.com/dshills/yieldbus/internal/config"
	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/events"
	"github.com/dshills/yieldbus/internal/logging"
	"github.com/dshills/yieldbus/internal/plugin"
	"github.com/dshills/yieldbus/internal/scenario"
)

// bootstrapper builds the components in dependency order.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func (b *bootstrapper) run() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"bus", b.initBus},
		{"plugins", b.initPlugins},
		{"scenario", b.initScenario},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.logger.Debug("application initialized", "order", b.initOrder)
	return nil
}

// initConfig loads the file and environment, then applies flags.
func (b *bootstrapper) initConfig() error {
	path := b.opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	if b.opts.LogLevel != "" {
		cfg.Logging.Level = b.opts.LogLevel
	}
	if b.opts.LogFormat != "" {
		cfg.Logging.Format = b.opts.LogFormat
	}
	if len(b.opts.PluginDirs) > 0 {
		cfg.Plugins.Dirs = b.opts.PluginDirs
	}
	if b.opts.Watch != nil {
		cfg.Plugins.Watch = *b.opts.Watch
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.config = cfg
	return nil
}

func (b *bootstrapper) initLogging() error {
	cfg := b.app.config.Logging
	logger, err := logging.New(logging.Options{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Output:    b.opts.LogOutput,
	})
	if err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	b.app.logger = logger
	return nil
}

func (b *bootstrapper) initBus() error {
	cfg := b.app.config
	logger := b.app.logger.With("component", "bus")
	b.app.bus = event.NewBus(
		event.WithHierarchy(events.NewHierarchy()),
		event.WithCoordinator(event.NewCoordinator(cfg.Coordinator.Name, cfg.Coordinator.QueueSize)),
		event.WithExceptionPolicy(event.NewLogPolicy(logger)),
		event.WithLogger(logger),
		event.WithAsyncWorkers(cfg.Bus.AsyncWorkers),
		event.WithAsyncQueueSize(cfg.Bus.AsyncQueueSize),
		event.WithAsyncTimeout(cfg.Bus.AsyncTimeout.Duration),
	)
	return nil
}

func (b *bootstrapper) initPlugins() error {
	cfg := b.app.config.Plugins
	dirs := slices.Clone(cfg.Dirs)
	if len(dirs) == 0 {
		dirs = plugin.DefaultPluginPaths()
	}
	for i, dir := range dirs {
		if abs, err := filepath.Abs(dir); err == nil {
			dirs[i] = abs
		}
	}

	logger := b.app.logger.With("component", "plugins")
	b.app.plugins = plugin.NewManager(b.app.bus, plugin.ManagerConfig{
		PluginPaths:      dirs,
		AutoEnable:       cfg.AutoEnable,
		ExecutionTimeout: cfg.ExecutionTimeout.Duration,
		Settings:         cfg.Settings,
	}, logger)

	b.app.plugins.Subscribe(func(ev plugin.ManagerEvent) {
		if ev.Error != nil {
			logger.Warn("plugin event", "type", ev.Type, "plugin", ev.Plugin, "error", ev.Error)
			return
		}
		logger.Debug("plugin event", "type", ev.Type, "plugin", ev.Plugin)
	})
	return nil
}

// initScenario parses the scenario up front so a bad file fails before any
// plugin runs.
func (b *bootstrapper) initScenario() error {
	if b.opts.ScenarioPath == "" {
		return nil
	}
	sc, err := scenario.Load(b.opts.ScenarioPath)
	if err != nil {
		return &InitError{Component: "scenario", Err: err}
	}
	b.app.scenario = sc
	b.app.runner = scenario.NewRunner(b.app.bus, b.app.logger.With("component", "scenario"))
	return nil
}
