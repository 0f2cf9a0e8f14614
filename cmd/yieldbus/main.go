// Package main is the entry point for the yieldbus event host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dshills/yieldbus/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitScenario = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrScenarioFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitScenario
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func parseFlags() app.Options {
	var opts app.Options
	var pluginDirs string
	var showVersion bool
	var showHelp bool
	var watch optionalBool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (default yieldbus.toml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&pluginDirs, "plugins", "", "Plugin directories, separated by the OS path list separator")
	flag.StringVar(&pluginDirs, "p", "", "Plugin directories (shorthand)")
	flag.StringVar(&opts.ScenarioPath, "scenario", "", "Scenario file to fire once plugins are enabled")
	flag.StringVar(&opts.ScenarioPath, "s", "", "Scenario file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFormat, "log-format", "", "Log format (text, json)")
	flag.Var(&watch, "watch", "Keep running and hot-reload plugins on change; -watch=false overrides the config file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "yieldbus - synchronous event dispatch host with Lua plugins\n\n")
		fmt.Fprintf(os.Stderr, "Usage: yieldbus [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  yieldbus -p ./plugins -s demo.yaml   Fire a scenario against the plugins\n")
		fmt.Fprintf(os.Stderr, "  yieldbus -p ./plugins -watch         Hot-reload plugins until interrupted\n")
		fmt.Fprintf(os.Stderr, "  yieldbus -c prod.toml -log-level debug\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(exitOK)
	}

	if showVersion {
		fmt.Printf("yieldbus %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(exitOK)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(exitError)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments %v\n", flag.Args())
		os.Exit(exitError)
	}

	opts.Watch = watch.value

	for _, dir := range filepath.SplitList(pluginDirs) {
		if dir != "" {
			opts.PluginDirs = append(opts.PluginDirs, dir)
		}
	}

	return opts
}

// optionalBool is a boolean flag that records whether it was given at all.
type optionalBool struct {
	value *bool
}

func (b *optionalBool) String() string {
	if b == nil || b.value == nil {
		return ""
	}
	return strconv.FormatBool(*b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.value = &v
	return nil
}

// IsBoolFlag lets -watch be given without a value.
func (b *optionalBool) IsBoolFlag() bool { return true }
