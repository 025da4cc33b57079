// Package app implements dbgee's orchestrator: the component that
// dispatches the run/set/unset/hook subcommands, selects a debugger
// adapter and an attach terminal, and drives the debuggee to exit. It is
// the Go counterpart of the reference implementation's lib.rs::run /
// build_debugger / build_debugger_terminal / detect_debugger /
// detect_debugger_terminal / wait_pid_exit, restructured around the
// reference agent's functional-options component-wiring style
// (cmd/agent/main.go) rather than a single free function.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/dbgee/dbgee/internal/classify"
	"github.com/dbgee/dbgee/internal/debugger"
	"github.com/dbgee/dbgee/internal/hook"
	"github.com/dbgee/dbgee/internal/ledger"
	"github.com/dbgee/dbgee/internal/ptrace"
	"github.com/dbgee/dbgee/internal/terminal"
	"github.com/dbgee/dbgee/internal/wrap"
)

// SignaledExitCode is the fixed exit code reported for a run subcommand
// when the debuggee dies by signal rather than exiting normally, matching
// the reference implementation's wait_pid_exit (128 + SIGINT).
const SignaledExitCode = 130

// App wires together the classifier cache and (optionally) the session
// ledger shared across a single dbgee invocation's subcommand dispatch.
type App struct {
	Logger   *slog.Logger
	Classify *classify.Cache
	Ledger   *ledger.Ledger // nil if the session ledger is disabled
}

// New returns an App. ledg may be nil: the ledger is an optional ambient
// component, and every App method degrades to "don't record" rather than
// failing when it is absent.
func New(logger *slog.Logger, ledg *ledger.Ledger) *App {
	return &App{Logger: logger, Classify: classify.NewCache(), Ledger: ledg}
}

// RunOpts configures a single `dbgee run` invocation.
type RunOpts struct {
	DebuggerName string // empty: auto-detect
	DebuggerPort int    // 0: adapter default; only meaningful for dlv/debugpy
	TerminalName string // empty: auto-detect
	Target       string
	Args         []string
}

// Run resolves Target through any shim, selects a debugger and terminal,
// launches the debuggee under the chosen debugger, opens the terminal, and
// waits for the debuggee to exit. It returns the exit code spec.md §6
// specifies: the debuggee's own exit code, SignaledExitCode if it died by
// signal, or 0 if the wait reports "no such child" (reparented).
func (a *App) Run(ctx context.Context, opts RunOpts) (int, error) {
	target, err := wrap.ResolveOriginal(opts.Target)
	if err != nil {
		return 1, fmt.Errorf("app: resolve %q: %w", opts.Target, err)
	}

	d, err := a.selectDebugger(opts.DebuggerName, opts.DebuggerPort, target)
	if err != nil {
		return 1, err
	}

	termName := opts.TerminalName
	if forcer, ok := d.(debugger.TerminalForcer); ok {
		forced := forcer.ForcedTerminal()
		if termName != "" && termName != forced {
			a.Logger.Info("debugger adapter forces a specific terminal, overriding requested terminal",
				"debugger", d.Name(), "requested", termName, "forced", forced)
		}
		termName = forced
	}
	term, err := a.selectTerminal(termName)
	if err != nil {
		return 1, err
	}

	pid, err := d.Launch(ctx, target, opts.Args, a.Logger)
	if err != nil {
		return 1, fmt.Errorf("app: launch %q under %s: %w", target, d.Name(), err)
	}
	a.recordEvent(ctx, ledger.EventRun, target, d.Name(), fmt.Sprintf("pid=%d", pid))

	// StopAndWritePid has no attach command to hand a terminal: opening one
	// would only produce an internal-bug error from AttachCommand, which
	// spec.md §7 says must never happen in correct operation. The original
	// implementation likewise skips terminal::open for this adapter.
	if d.HasAttachCommand() {
		if err := term.Open(d); err != nil {
			a.Logger.Warn("failed to open attach terminal", "error", err)
		}
	}

	code, err := ptrace.WaitExit(pid)
	if err != nil {
		return 1, fmt.Errorf("app: wait for %q (pid %d) to exit: %w", target, pid, err)
	}
	return code, nil
}

// SetOpts configures a single `dbgee set` invocation.
type SetOpts struct {
	Target   string
	RunCmd   string   // the reconstructed "dbgee run <flags...>" command, sans "-- <debuggee>"
	StartCmd []string // if non-empty, run this command to completion, then auto-unset
}

// Set installs a shim at Target that re-invokes RunCmd on next launch. If
// StartCmd is given, it runs StartCmd to completion and then uninstalls the
// shim, matching spec.md §2's "set ... and, if a start command is given,
// runs it and then uninstalls" control flow.
func (a *App) Set(ctx context.Context, opts SetOpts) error {
	if err := wrap.Wrap(opts.Target, opts.RunCmd); err != nil {
		return fmt.Errorf("app: set %q: %w", opts.Target, err)
	}
	a.recordEvent(ctx, ledger.EventWrap, opts.Target, "", "")

	if len(opts.StartCmd) == 0 {
		return nil
	}

	defer func() {
		if err := wrap.Unwrap(opts.Target); err != nil {
			a.Logger.Warn("failed to auto-unset after start command completed", "target", opts.Target, "error", err)
			return
		}
		a.recordEvent(ctx, ledger.EventUnwrap, opts.Target, "", "")
	}()

	c := exec.CommandContext(ctx, opts.StartCmd[0], opts.StartCmd[1:]...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}

// Unset removes the shim at Target and restores the original executable.
func (a *App) Unset(ctx context.Context, target string) error {
	if err := wrap.Unwrap(target); err != nil {
		return fmt.Errorf("app: unset %q: %w", target, err)
	}
	a.recordEvent(ctx, ledger.EventUnwrap, target, "", "")
	return nil
}

// HookOpts configures a single `dbgee hook` invocation.
type HookOpts struct {
	DebuggerName string
	DebuggerPort int
	TerminalName string
	Command      string
	Args         []string
	Conditions   hook.Opts
}

// Hook spawns Command under whole-tree tracing and attaches the selected
// debugger to the first descendant matching Conditions. It is only
// supported where internal/hook's Linux build is active; see hook.Run.
func (a *App) Hook(ctx context.Context, opts HookOpts) error {
	conds, err := hook.BuildConditions(opts.Conditions)
	if err != nil {
		return fmt.Errorf("app: build hook conditions: %w", err)
	}

	d, err := a.selectDebugger(opts.DebuggerName, opts.DebuggerPort, opts.Command)
	if err != nil {
		return err
	}
	term, err := a.selectTerminal(opts.TerminalName)
	if err != nil {
		return err
	}

	err = hook.Run(ctx, hook.RunOpts{
		Command:    opts.Command,
		Args:       opts.Args,
		Conditions: conds,
		Debugger:   d,
		Terminal:   term,
		Logger:     a.Logger,
	})
	if err != nil {
		return fmt.Errorf("app: hook %q: %w", opts.Command, err)
	}
	a.recordEvent(ctx, ledger.EventHookMatch, opts.Command, d.Name(), "")
	return nil
}

// selectDebugger constructs the adapter named by name (overriding its
// listen port if port is non-zero and the adapter is dlv or debugpy), or
// walks debugger.Detect's candidate order against target if name is empty.
func (a *App) selectDebugger(name string, port int, target string) (debugger.Debugger, error) {
	if name != "" {
		d, err := debugger.ByNameWithPort(name, port)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return d, nil
	}
	d, err := debugger.Detect(target, a.Classify)
	if err != nil {
		return nil, fmt.Errorf("app: auto-detect debugger for %q: %w", target, err)
	}
	return d, nil
}

// selectTerminal constructs the terminal named by name, or defaults to the
// IDE terminal when dbgee's process ancestry suggests a cooperating IDE
// window, else a tmux pane, matching spec.md §4.G.
func (a *App) selectTerminal(name string) (terminal.Terminal, error) {
	if name != "" {
		t, err := terminal.ByName(name, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return t, nil
	}
	if terminal.DetectIDEAncestry() {
		return terminal.NewVSCode(a.Logger), nil
	}
	return terminal.NewTmux(terminal.LayoutNewPane, a.Logger), nil
}

// recordEvent appends evt to the ledger if one is configured; ledger
// failures are logged and swallowed, since the ledger is an ambient
// convenience, not load-bearing for any spec.md operation.
func (a *App) recordEvent(ctx context.Context, kind ledger.EventKind, target, debuggerName, detail string) {
	if a.Ledger == nil {
		return
	}
	evt := ledger.Event{Kind: kind, Target: target, Debugger: debuggerName, Detail: detail}
	if err := a.Ledger.Append(ctx, evt); err != nil {
		a.Logger.Warn("failed to append ledger event", "kind", kind, "target", target, "error", err)
	}
}
