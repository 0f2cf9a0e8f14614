package app

import (
	"context"
	"log/slog"

	"github.com/dshills/yieldbus/internal/event"
)

// logStats writes the bus counters as one summary record. Failure counters
// raise the level to warn.
func logStats(logger *slog.Logger, s event.Stats) {
	level := slog.LevelInfo
	if s.HandlerErrors+s.HandlerPanics+s.FatalAborts+s.TerminalFailures+s.WrongThread+s.Dropped > 0 {
		level = slog.LevelWarn
	}
	logger.LogAttrs(context.Background(), level, "bus stats",
		slog.Group("dispatch",
			slog.Uint64("dispatched", s.Dispatched),
			slog.Uint64("posted", s.Posted),
			slog.Uint64("dropped", s.Dropped),
			slog.Uint64("wrong_thread", s.WrongThread),
		),
		slog.Group("handlers",
			slog.Uint64("invoked", s.HandlersInvoked),
			slog.Uint64("skipped", s.HandlersSkipped),
			slog.Uint64("yields", s.Yields),
			slog.Uint64("errors", s.HandlerErrors),
			slog.Uint64("panics", s.HandlerPanics),
		),
		slog.Uint64("fatal_aborts", s.FatalAborts),
		slog.Uint64("terminal_failures", s.TerminalFailures),
		slog.Uint64("bakes", s.Bakes),
		slog.Int("registrations", s.Registrations),
	)
}
