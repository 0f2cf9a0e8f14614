package plugin

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// DefaultMain is the entry script used when the manifest names none.
const DefaultMain = "main.lua"

// Manifest describes a plugin's metadata and requirements.
//
//	name: spawn-protect
//	version: 1.2.0
//	description: Stops block changes near spawn
//	authors: [alex]
//	main: main.lua
//	depend: [worldguard]
//	softdepend: [essentials]
//	config:
//	  radius: 16
type Manifest struct {
	// Name is the unique plugin identifier.
	Name string `yaml:"name"`

	// Version is a semver string.
	Version string `yaml:"version"`

	Description string   `yaml:"description,omitempty"`
	Authors     []string `yaml:"authors,omitempty"`
	Website     string   `yaml:"website,omitempty"`

	// Main is the entry script relative to the plugin directory.
	Main string `yaml:"main"`

	// Depend lists plugins that must be loaded and enabled first.
	Depend []string `yaml:"depend,omitempty"`

	// SoftDepend lists plugins that load first when present.
	SoftDepend []string `yaml:"softdepend,omitempty"`

	// Config holds default settings passed to on_enable.
	Config map[string]any `yaml:"config,omitempty"`

	// path is the plugin directory.
	path string
}

// Validation errors.
var (
	ErrMissingName    = errors.New("manifest: name is required")
	ErrInvalidName    = errors.New("manifest: name must be lowercase alphanumeric with hyphens")
	ErrMissingVersion = errors.New("manifest: version is required")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file inside the plugin")
	ErrSelfDependency = errors.New("manifest: plugin cannot depend on itself")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.path = filepath.Dir(path)
	return m, nil
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads plugin.yaml from a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// NewManifestMinimal creates a manifest for a plugin without plugin.yaml.
func NewManifestMinimal(name, dir, main string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    main,
		path:    dir,
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version == "" {
		return ErrMissingVersion
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if filepath.Ext(m.Main) != ".lua" || filepath.IsAbs(m.Main) || strings.HasPrefix(filepath.Clean(m.Main), "..") {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	for _, dep := range slices.Concat(m.Depend, m.SoftDepend) {
		if dep == m.Name {
			return ErrSelfDependency
		}
		if !namePattern.MatchString(dep) {
			return fmt.Errorf("%w: dependency %s", ErrInvalidName, dep)
		}
	}
	return nil
}

// Path returns the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the entry script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// DependsOn reports whether the plugin names other in depend or softdepend.
func (m *Manifest) DependsOn(other string) bool {
	return slices.Contains(m.Depend, other) || slices.Contains(m.SoftDepend, other)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}

// Clone creates a deep copy of the manifest. Config values are copied one
// level deep.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	clone.Authors = slices.Clone(m.Authors)
	clone.Depend = slices.Clone(m.Depend)
	clone.SoftDepend = slices.Clone(m.SoftDepend)
	clone.Config = maps.Clone(m.Config)
	return &clone
}
