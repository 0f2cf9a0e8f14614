package lua

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	lua "github.com/yuin/gopher-lua"
)

// InstallLog registers the "log" module, writing to logger, and redirects
// print to it at info level.
//
//	log.info("teleported", { player = name, x = x })
func InstallLog(state *State, logger *slog.Logger) {
	bridge := NewBridge(state.L)

	emit := func(level slog.Level) lua.LGFunction {
		return func(L *lua.LState) int {
			msg := L.CheckString(1)
			var attrs []any
			if t := L.OptTable(2, nil); t != nil {
				if fields, ok := bridge.ToGoValue(t).(map[string]any); ok {
					for _, k := range slices.Sorted(maps.Keys(fields)) {
						attrs = append(attrs, k, fields[k])
					}
				}
			}
			ctx := L.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger.Log(ctx, level, msg, attrs...)
			return 0
		}
	}

	state.RegisterModule("log", map[string]lua.LGFunction{
		"debug": emit(slog.LevelDebug),
		"info":  emit(slog.LevelInfo),
		"warn":  emit(slog.LevelWarn),
		"error": emit(slog.LevelError),
	}, nil)

	state.Sandbox().SetPrinter(func(msg string) {
		logger.Info(msg, "source", "print")
	})
}
