package debugger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dbgee/dbgee/internal/classify"
	"github.com/dbgee/dbgee/internal/ptrace"
	"github.com/dbgee/dbgee/internal/wrap"
)

// gdbCompatible backs both GDB and LLDB: the only difference between them
// is the binary name and whether the attach command requests a text UI,
// matching GdbCompatibleDebugger in the original implementation.
type gdbCompatible struct {
	name      string
	tui       bool
	target    string
	pid       int
	programID string
	launched  bool
}

// NewGDB returns the GDB adapter, or an error if gdb is not on $PATH: per
// spec.md §4.E an adapter is "constructed (verifying backend command
// availability)", matching GdbDebugger::build's command_exists check in
// the original implementation.
func NewGDB() (Debugger, error) {
	if !classify.CommandExists("gdb") {
		return nil, fmt.Errorf("gdb: command not found on PATH")
	}
	return &gdbCompatible{name: "gdb", tui: true}, nil
}

// NewLLDB returns the LLDB adapter, or an error if lldb is not on $PATH.
func NewLLDB() (Debugger, error) {
	if !classify.CommandExists("lldb") {
		return nil, fmt.Errorf("lldb: command not found on PATH")
	}
	return &gdbCompatible{name: "lldb"}, nil
}

func (g *gdbCompatible) Name() string { return g.name }

func (g *gdbCompatible) Launch(ctx context.Context, target string, args []string, logger *slog.Logger) (int, error) {
	hs, err := ptrace.Start(ctx, target, args, logger)
	if err != nil {
		return 0, fmt.Errorf("%s: launch %q: %w", g.name, target, err)
	}
	g.target = target
	g.pid = hs.Pid
	g.programID = target
	g.launched = true
	return hs.Pid, nil
}

func (g *gdbCompatible) Attach(pid int, path string) error {
	g.pid = pid
	g.target = path
	g.programID = path
	g.launched = true
	return nil
}

func (g *gdbCompatible) AttachCommand() ([]string, error) {
	if !g.launched {
		return nil, fmt.Errorf("%w: %s.AttachCommand called before Launch/Attach", ErrInternal, g.name)
	}
	if g.tui {
		return []string{g.name, "-tui", "-p", fmt.Sprintf("%d", g.pid)}, nil
	}
	return []string{g.name, "-p", fmt.Sprintf("%d", g.pid)}, nil
}

func (g *gdbCompatible) AttachInfo() (AttachInfo, error) {
	if !g.launched {
		return nil, fmt.Errorf("%w: %s.AttachInfo called before Launch/Attach", ErrInternal, g.name)
	}
	return AttachInfo{
		KeyTypeHint:    g.name,
		KeyPid:         fmt.Sprintf("%d", g.pid),
		KeyProgramName: g.programID,
	}, nil
}

// HasAttachCommand is always true: gdb and lldb always have an interactive
// attach command once launched or attached.
func (g *gdbCompatible) HasAttachCommand() bool { return true }

// Supports is true for ELF and Mach-O executables, recursing into a shim's
// backup: if path is itself a dbgee shim, the check is made against its
// "-original" backup instead.
func (g *gdbCompatible) Supports(path string, cache *classify.Cache) bool {
	resolved, err := wrap.ResolveOriginal(path)
	if err != nil {
		resolved = path
	}
	isELF, err := cache.Is(resolved, "ELF")
	if err == nil && isELF {
		return true
	}
	isMachO, err := cache.Is(resolved, "Mach-O")
	return err == nil && isMachO
}
