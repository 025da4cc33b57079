// Package terminal hands attach coordinates to whatever the user will
// actually look at: a tmux window/pane running the interactive attach
// command, or a cooperating IDE window reached through a pair of named
// pipes. Grounded on debugger_terminal.rs in the original implementation,
// extended per spec.md §4.F/§6 with the request-pipe/protocol-version/
// debugger-type-remap/privilege-demotion behavior the original source
// snapshot predates.
package terminal

import (
	"log/slog"

	"github.com/dbgee/dbgee/internal/debugger"
)

// Terminal opens an interactive view onto an already-launched-or-attached
// debugger.
type Terminal interface {
	Open(d debugger.Debugger) error
}

// ByName constructs the terminal named by the user's `-terminal` flag.
func ByName(name string, logger *slog.Logger) (Terminal, error) {
	switch name {
	case "tmux-window":
		return NewTmux(LayoutNewWindow, logger), nil
	case "tmux-pane":
		return NewTmux(LayoutNewPane, logger), nil
	case "vscode":
		return NewVSCode(logger), nil
	default:
		return nil, errUnknownTerminal(name)
	}
}

type errUnknownTerminal string

func (e errUnknownTerminal) Error() string { return "terminal: unknown terminal " + string(e) }
