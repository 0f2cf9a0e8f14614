// Package loader reads raw configuration trees for yieldbus.
//
// A tree is a map[string]any keyed by TOML section and key names. Loaders
// return a nil tree when their source does not exist; layering trees is
// left to DeepMerge.
package loader

import (
	"fmt"
	"io"
	"os"
)

// Loader produces a configuration tree from one source.
type Loader interface {
	// Load returns nil, nil when the source does not exist.
	Load() (map[string]any, error)
}

// ReaderLoader parses a configuration tree from a stream.
type ReaderLoader interface {
	LoadFromReader(r io.Reader) (map[string]any, error)
}

// FileSystem is the file access the loaders need. Tests substitute an
// in-memory implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the operating system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the operating system file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

// ParseError reports a malformed configuration source.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
