package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/dbgee/dbgee/internal/debugger"
)

// TmuxLayout selects how the attach command is opened inside an existing
// tmux session.
type TmuxLayout int

const (
	// LayoutNewWindow opens the attach command in a new tmux window.
	LayoutNewWindow TmuxLayout = iota
	// LayoutNewPane splits the current window and opens the attach
	// command in the new, horizontally-split pane.
	LayoutNewPane
)

func (l TmuxLayout) args() []string {
	if l == LayoutNewPane {
		return []string{"splitw", "-h"}
	}
	return []string{"new-window"}
}

// Tmux is the multiplexer terminal: it probes for an existing tmux
// session and either opens a new window/pane in it or starts a fresh
// detached session running the attach command.
type Tmux struct {
	Layout TmuxLayout
	logger *slog.Logger
}

// NewTmux returns a Tmux terminal using the given layout.
func NewTmux(layout TmuxLayout, logger *slog.Logger) *Tmux {
	return &Tmux{Layout: layout, logger: logger}
}

// Open implements Terminal.
func (t *Tmux) Open(d debugger.Debugger) error {
	attachCmd, err := d.AttachCommand()
	if err != nil {
		return fmt.Errorf("tmux: build attach command: %w", err)
	}

	probe := t.command("tmux", "ls")
	hasSession := probe.Run() == nil

	if hasSession {
		args := append(append([]string{}, t.Layout.args()...), attachCmd...)
		cmd := t.command("tmux", args...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("tmux: open %v in existing session: %w", attachCmd, err)
		}
		return nil
	}

	sessionArgs := append([]string{"new-session", "-d"}, attachCmd...)
	cmd := t.command("tmux", sessionArgs...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux: start new session with %v: %w", attachCmd, err)
	}
	t.logger.Info("started a new detached tmux session for the debugger; reattach with `tmux attach`")
	return nil
}

// command builds the given tmux invocation, demoted to run as SUDO_USER
// when dbgee itself is running as root with SUDO_USER present in the
// environment — the same demotion rule spec.md §4.F and §6 describe,
// since a tmux session created as root is normally invisible and
// unreachable to the unprivileged user who will actually attach.
func (t *Tmux) command(name string, args ...string) *exec.Cmd {
	if os.Geteuid() == 0 {
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			full := append([]string{"-u", sudoUser, name}, args...)
			return exec.Command("sudo", full...)
		}
	}
	return exec.Command(name, args...)
}
