package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader reads a configuration tree from a TOML file.
type TOMLLoader struct {
	fs   FileSystem
	path string
}

// NewTOMLLoader creates a loader for path on the operating system.
func NewTOMLLoader(path string) *TOMLLoader {
	return NewTOMLLoaderWithFS(DefaultFS(), path)
}

// NewTOMLLoaderWithFS creates a loader for path on fsys.
func NewTOMLLoaderWithFS(fsys FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{fs: fsys, path: path}
}

// Path returns the file the loader reads.
func (l *TOMLLoader) Path() string {
	return l.path
}

// Load reads the file. A missing file yields a nil tree.
func (l *TOMLLoader) Load() (map[string]any, error) {
	data, err := l.fs.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	return parseTOML(l.path, data)
}

// LoadFromReader parses TOML from r.
func (l *TOMLLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseTOML("<reader>", data)
}

func parseTOML(source string, data []byte) (map[string]any, error) {
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		perr := &ParseError{Path: source, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return tree, nil
}

// DeepMerge returns base with over layered on top. Tables merge key by key;
// any other value in over replaces the one in base. Neither input is
// modified.
func DeepMerge(base, over map[string]any) map[string]any {
	out := Clone(base)
	if out == nil {
		out = make(map[string]any, len(over))
	}
	for key, val := range over {
		overTable, overIsTable := val.(map[string]any)
		baseTable, baseIsTable := out[key].(map[string]any)
		if overIsTable && baseIsTable {
			out[key] = DeepMerge(baseTable, overTable)
			continue
		}
		out[key] = cloneValue(val)
	}
	return out
}

// Clone deep-copies a configuration tree.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Encode renders a tree as TOML.
func Encode(tree map[string]any) ([]byte, error) {
	return toml.Marshal(tree)
}
