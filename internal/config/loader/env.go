package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of yieldbus environment variables.
const DefaultEnvPrefix = "YIELDBUS_"

// EnvLoader builds a configuration tree from environment variables.
//
// Mapped variables go to their configured path. Any other variable with the
// prefix is placed by name: YIELDBUS_BUS_ASYNC_TIMEOUT sets bus.async_timeout.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	lists   map[string]bool
}

// NewEnvLoader creates a loader with the default yieldbus mappings.
// The prefix includes the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	l := &EnvLoader{
		prefix:  prefix,
		mapping: make(map[string]string),
		lists:   make(map[string]bool),
	}
	l.AddMapping(prefix+"LOG_LEVEL", "logging.level")
	l.AddMapping(prefix+"LOG_FORMAT", "logging.format")
	l.AddMapping(prefix+"ASYNC_WORKERS", "bus.async_workers")
	l.AddMapping(prefix+"ASYNC_QUEUE", "bus.async_queue_size")
	l.AddMapping(prefix+"COORDINATOR", "coordinator.name")
	l.AddListMapping(prefix+"PLUGIN_DIR", "plugins.dirs")
	l.AddMapping(prefix+"PLUGIN_WATCH", "plugins.watch")
	return l
}

// AddMapping routes envVar to a dotted configuration path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
	delete(l.lists, envVar)
}

// AddListMapping routes envVar to path as a list split on the OS path list
// separator.
func (l *EnvLoader) AddListMapping(envVar, path string) {
	l.mapping[envVar] = path
	l.lists[envVar] = true
}

// Load reads the environment. Empty values count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	tree := make(map[string]any)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
			if path == "" {
				continue
			}
		}
		if l.lists[name] {
			setByPath(tree, path, splitList(value))
			continue
		}
		setByPath(tree, path, parseValue(value))
	}
	return tree, nil
}

// envToPath turns PREFIX_SECTION_SOME_KEY into section.some_key.
func (l *EnvLoader) envToPath(env string) string {
	section, key, ok := strings.Cut(strings.TrimPrefix(env, l.prefix), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(key)
}

func splitList(s string) []any {
	var out []any
	for _, item := range filepath.SplitList(s) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseValue types an environment string. Durations stay strings so they
// decode through the configuration's own duration type.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// setByPath stores value under a dotted path, creating tables as needed.
func setByPath(tree map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
