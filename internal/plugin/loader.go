package plugin

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Loader discovers plugins on the filesystem.
//
// A plugin is either a directory containing plugin.yaml (or a bare
// main.lua), or a single name.lua file directly inside a search path.
// Earlier search paths win when names collide.
type Loader struct {
	paths      []string
	discovered map[string]*PluginInfo
}

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	Name     string
	Path     string
	Manifest *Manifest
	Error    error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultPluginPaths(),
		discovered: make(map[string]*PluginInfo),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "plugins"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "yieldbus", "plugins"))
	}
	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// AddPath adds a search path.
func (l *Loader) AddPath(path string) {
	l.paths = append(l.paths, path)
}

// Discover finds all plugins in the search paths, sorted by name.
// Missing search paths are skipped. Plugins with invalid manifests are
// returned with Error set.
func (l *Loader) Discover() ([]*PluginInfo, error) {
	l.discovered = make(map[string]*PluginInfo)

	var errs []error
	for _, basePath := range l.paths {
		if err := l.discoverInPath(basePath); err != nil {
			errs = append(errs, err)
		}
	}

	plugins := slices.SortedFunc(maps.Values(l.discovered), func(a, b *PluginInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return plugins, errors.Join(errs...)
}

// discoverInPath finds plugins in a single directory.
func (l *Loader) discoverInPath(basePath string) error {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("scan %s: %w", basePath, err)
	}

	for _, entry := range entries {
		var info *PluginInfo
		switch {
		case entry.IsDir():
			info = l.inspectPlugin(entry.Name(), filepath.Join(basePath, entry.Name()))
		case filepath.Ext(entry.Name()) == ".lua":
			info = singleFilePlugin(basePath, entry.Name())
		default:
			continue
		}
		if info == nil {
			continue
		}
		if _, exists := l.discovered[info.Name]; !exists {
			l.discovered[info.Name] = info
		}
	}
	return nil
}

// singleFilePlugin describes a lone name.lua file.
func singleFilePlugin(dir, file string) *PluginInfo {
	name := strings.TrimSuffix(file, ".lua")
	info := &PluginInfo{
		Name:     name,
		Path:     dir,
		Manifest: NewManifestMinimal(name, dir, file),
	}
	if err := info.Manifest.Validate(); err != nil {
		info.Error = fmt.Errorf("invalid plugin file %s: %w", file, err)
	}
	return info
}

// inspectPlugin examines a plugin directory. It returns nil for directories
// that hold no plugin at all.
func (l *Loader) inspectPlugin(name, path string) *PluginInfo {
	info := &PluginInfo{Name: name, Path: path}

	manifestPath := filepath.Join(path, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			info.Error = fmt.Errorf("invalid manifest: %w", err)
			return info
		}
		info.Manifest = manifest
		info.Name = manifest.Name
		if _, err := os.Stat(manifest.MainPath()); err != nil {
			info.Error = fmt.Errorf("%w: %s", ErrNoEntryPoint, manifest.Main)
		}
		return info
	}

	if _, err := os.Stat(filepath.Join(path, DefaultMain)); err == nil {
		info.Manifest = NewManifestMinimal(name, path, DefaultMain)
		if err := info.Manifest.Validate(); err != nil {
			info.Error = err
		}
		return info
	}

	return nil
}

// Get returns info for a discovered plugin by name.
func (l *Loader) Get(name string) (*PluginInfo, bool) {
	info, ok := l.discovered[name]
	return info, ok
}

// FindPlugin returns a plugin by name, rescanning the search paths when it
// has not been discovered yet.
func (l *Loader) FindPlugin(name string) (*PluginInfo, error) {
	if info, ok := l.discovered[name]; ok {
		return info, nil
	}
	if _, err := l.Discover(); err != nil {
		return nil, err
	}
	if info, ok := l.discovered[name]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// ListNames returns the names of all discovered plugins.
func (l *Loader) ListNames() []string {
	return slices.Sorted(maps.Keys(l.discovered))
}

// Count returns the number of discovered plugins.
func (l *Loader) Count() int {
	return len(l.discovered)
}

// Errors returns the discovered plugins that failed inspection.
func (l *Loader) Errors() []*PluginInfo {
	var out []*PluginInfo
	for _, name := range l.ListNames() {
		if info := l.discovered[name]; info.Error != nil {
			out = append(out, info)
		}
	}
	return out
}
