// Package app wires the yieldbus components together and runs them.
//
// Startup order is config, logging, bus, plugins, scenario. Run starts the
// async pool and the coordinator loop, loads and enables plugins on the
// coordinator, fires the scenario, and with watching enabled keeps
// hot-reloading plugins until its context ends. Shutdown runs in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/yieldbus/internal/config"
	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/plugin"
	"github.com/dshills/yieldbus/internal/scenario"
)

// ShutdownTimeout bounds plugin unloading and the async pool drain.
const ShutdownTimeout = 5 * time.Second

// Application owns the bus, the plugin manager and the scenario runner.
type Application struct {
	config  *config.Config
	logger  *slog.Logger
	bus     *event.Bus
	plugins *plugin.Manager
	watcher *plugin.Watcher

	scenario *scenario.Scenario
	runner   *scenario.Runner
	report   atomic.Pointer[scenario.Report]

	running atomic.Bool
}

// Options configures the application. Non-zero fields override the
// configuration file and environment.
type Options struct {
	// ConfigPath is the TOML file. Empty means config.DefaultPath.
	ConfigPath string

	// PluginDirs replaces the configured plugin search paths.
	PluginDirs []string

	// ScenarioPath is a scenario file to fire once plugins are enabled.
	ScenarioPath string

	// LogLevel and LogFormat override the logging section.
	LogLevel  string
	LogFormat string

	// Watch overrides plugins.watch when non-nil. Watching keeps the
	// application running and hot-reloads plugins.
	Watch *bool

	// LogOutput receives log records. Nil means stderr.
	LogOutput io.Writer
}

// New creates an application from opts.
func New(opts Options) (*Application, error) {
	app := &Application{}
	b := &bootstrapper{app: app, opts: opts}
	if err := b.run(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config { return app.config }

// Logger returns the root logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus { return app.bus }

// Plugins returns the plugin manager.
func (app *Application) Plugins() *plugin.Manager { return app.plugins }

// Report returns the last scenario report, or nil.
func (app *Application) Report() *scenario.Report { return app.report.Load() }

// Run starts every component and blocks until the work is done: after the
// scenario when not watching, otherwise until ctx ends. A cancelled ctx is
// not an error.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.bus.Start(); err != nil {
		return &InitError{Component: "bus", Err: err}
	}

	// The coordinator outlives ctx so plugins can unload on it.
	coCtx, stopCoordinator := context.WithCancel(context.WithoutCancel(ctx))
	coDone := make(chan error, 1)
	go func() {
		coDone <- app.bus.Coordinator().Run(coCtx)
	}()
	defer func() {
		app.shutdown()
		stopCoordinator()
		<-coDone
		app.stopBus()
	}()

	if err := app.plugins.LoadAll(ctx); err != nil {
		app.logger.Warn("some plugins failed to load", "error", err)
	}
	app.logger.Info("plugins ready",
		"coordinator", app.bus.Coordinator().Name(),
		"loaded", app.plugins.Count(),
		"enabled", app.plugins.CountEnabled())

	var scenarioErr error
	if app.scenario != nil {
		scenarioErr = app.runScenario(ctx)
		if errors.Is(scenarioErr, context.Canceled) {
			return nil
		}
	}

	if !app.config.Plugins.Watch {
		return scenarioErr
	}
	if err := app.startWatcher(ctx); err != nil {
		return errors.Join(scenarioErr, err)
	}
	app.logger.Info("watching plugins", "dirs", app.plugins.Loader().Paths())
	<-ctx.Done()
	return scenarioErr
}

func (app *Application) runScenario(ctx context.Context) error {
	report, err := app.runner.Run(ctx, app.scenario)
	app.report.Store(report)
	if err != nil {
		return err
	}
	failed := report.Failed()
	app.logger.Info("scenario finished",
		"scenario", report.Scenario,
		"dispatches", len(report.Results),
		"failed", len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d dispatches", ErrScenarioFailed, len(failed), len(report.Results))
	}
	return nil
}

func (app *Application) startWatcher(ctx context.Context) error {
	w, err := plugin.NewWatcher(app.plugins, app.config.Plugins.ReloadDelay.Duration,
		app.logger.With("component", "watcher"))
	if err != nil {
		return &ComponentError{Component: "watcher", Action: "create", Err: err}
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return &ComponentError{Component: "watcher", Action: "start", Err: err}
	}
	app.watcher = w
	return nil
}

// shutdown stops the watcher and unloads plugins while the coordinator is
// still running.
func (app *Application) shutdown() {
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Warn("watcher close failed", "error", err)
		}
		app.watcher = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := app.plugins.UnloadAll(ctx); err != nil {
		app.logger.Warn("plugin unload failed", "error", &ComponentError{Component: "plugins", Action: "unload", Err: err})
	}
}

func (app *Application) stopBus() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := app.bus.Stop(ctx); err != nil {
		app.logger.Warn("bus stop failed", "error", err)
	}
	logStats(app.logger, app.bus.Stats())
}
