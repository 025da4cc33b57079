// Package logx builds dbgee's process-wide logger and provides the
// swallow-and-log helper spec.md §7 calls for at points where an error is
// demoted to an informational or warning message rather than propagated
// (protocol errors, degraded attach handoff). Grounded on the reference
// agent's newLogger (cmd/agent/main.go) and its ErrorLogger trait, reduced
// here to a single function since Go has no trait-object equivalent worth
// introducing for one method.
package logx

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// New builds a *slog.Logger at the given level ("debug", "info", "warn",
// "error"; anything else is treated as "info"). It writes JSON to stderr
// when format is "json", or when format is empty and stderr is not a TTY
// (the reference agent's default for non-interactive invocations, e.g.
// under an init system or build tool); otherwise it writes a compact text
// handler suited to an interactive terminal.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	useJSON := format == "json" || (format == "" && !isatty.IsTerminal(os.Stderr.Fd()))
	if useJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WarnOnError logs err at warn level with msg and the given attrs if err is
// non-nil; it is a no-op otherwise. It fits the points spec.md §7 says an
// OS failure during attach handoff "is logged and processing continues in
// degraded form" rather than failing the whole operation; no package in
// this module calls it (internal/app logs those warnings with Logger.Warn).
func WarnOnError(logger *slog.Logger, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	logger.Warn(msg, append(args, "error", err)...)
}

// Bug logs err (or a bare message if err is nil) at error level prefixed
// with "[BUG]", the logging half of spec.md §7's "internal-bug errors ...
// dbgee logs [BUG] and exits non-zero". It only logs; exiting is left to
// the caller.
func Bug(logger *slog.Logger, err error, msg string) {
	logger.Error("[BUG] "+msg, "error", err)
}
