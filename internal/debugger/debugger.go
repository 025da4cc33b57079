// Package debugger implements the adapters dbgee uses to launch or attach
// to a debuggee under gdb, lldb, Delve, debugpy, or (as a last resort) a
// bare PID file. Modelled after the original implementation's Debugger
// trait: a small shared contract with five tagged variants, none of which
// derive from a common base type.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/dbgee/dbgee/internal/classify"
)

// AttachKey names one field of an AttachInfo map.
type AttachKey string

const (
	KeyTypeHint     AttachKey = "typeHint"
	KeyPid          AttachKey = "pid"
	KeyDebuggerPort AttachKey = "debuggerPort"
	KeyProgramName  AttachKey = "programName"
)

// AttachInfo is the small keyed map a debugger adapter produces describing
// how to reach the stopped debuggee.
type AttachInfo map[AttachKey]string

// ErrInternal marks an internal-bug condition: a query made before Launch,
// or a query against a variant that structurally cannot answer it
// (StopAndWritePid). Per spec.md §7 this is logged as "[BUG]" and causes a
// non-zero exit; it is never expected in correct operation.
var ErrInternal = errors.New("[BUG] debugger: internal invariant violated")

// Debugger is the shared contract every adapter implements.
type Debugger interface {
	// Name identifies the adapter for logging and CLI selection (e.g. "gdb").
	Name() string

	// Launch starts target with args under this adapter's control and
	// returns the debuggee's PID. It must be called before AttachCommand
	// or AttachInfo.
	Launch(ctx context.Context, target string, args []string, logger *slog.Logger) (int, error)

	// Attach is the hook engine's handoff entry point: the candidate
	// process is already stopped and dbgee has detached from it; Attach need not
	// start anything, only record enough state that AttachCommand and
	// AttachInfo can answer for it. Distinct from Launch per spec.md §4.H:
	// the hook engine calls "its attach routine (not its launch routine)".
	Attach(pid int, path string) error

	// AttachCommand returns argv for an interactive attach.
	AttachCommand() ([]string, error)

	// AttachInfo returns the attach-coordinates map.
	AttachInfo() (AttachInfo, error)

	// Supports is a best-effort classifier answer: could this adapter
	// plausibly debug the executable at path?
	Supports(path string, cache *classify.Cache) bool

	// HasAttachCommand reports whether AttachCommand/AttachInfo are
	// meaningful for this adapter once launched. Only StopAndWritePid
	// answers false: it has no interactive attach command, only the PID
	// file it writes itself, so the orchestrator must not open an attach
	// terminal for it.
	HasAttachCommand() bool
}

// TerminalForcer is implemented by adapters that require a specific
// terminal regardless of what the caller requested (debugpy always needs
// the IDE terminal). The orchestrator type-asserts for this after
// selecting a debugger and logs an informational notice if it overrides
// the caller's choice.
type TerminalForcer interface {
	ForcedTerminal() string
}

// detectOrderCtors returns the platform-ordered candidate constructors the
// orchestrator walks when no debugger was explicitly requested: Delve
// first since a Go binary is unambiguous, then the native debugger for
// this OS, then debugpy, then the unconditional last resort. Each
// constructor verifies its own backend is available on $PATH (spec.md
// §4.E: an adapter is "constructed (verifying backend command
// availability)"); Detect skips any candidate whose backend is missing
// rather than picking it and failing later at Launch, matching the
// original implementation's detect_debugger falling through to the next
// candidate when a backend's command_exists check fails.
func detectOrderCtors() []func() (Debugger, error) {
	native := NewGDB
	if runtime.GOOS == "darwin" {
		native = NewLLDB
	}
	return []func() (Debugger, error){
		NewDelve,
		native,
		NewDebugpy,
		NewStopAndWritePid,
	}
}

// ByName constructs the adapter named by the user's `-debugger` flag. It
// returns an error both if name is not recognized and if the adapter's
// backend command is not available, per spec.md §7: a backend-missing
// error must surface before any side effects (in particular, before
// controlled-start forks and stops the debuggee).
func ByName(name string) (Debugger, error) {
	switch name {
	case "gdb":
		return NewGDB()
	case "lldb":
		return NewLLDB()
	case "dlv":
		return NewDelve()
	case "debugpy":
		return NewDebugpy()
	case "stop-and-write-pid":
		return NewStopAndWritePid()
	default:
		return nil, fmt.Errorf("debugger: unknown debugger %q", name)
	}
}

// ByNameWithPort is ByName, but overrides the listen port of dlv or
// debugpy adapters when port is non-zero; it is a no-op override for the
// other three variants, which have no listen port of their own.
func ByNameWithPort(name string, port int) (Debugger, error) {
	switch name {
	case "dlv":
		return NewDelveWithPort(port)
	case "debugpy":
		return NewDebugpyWithPort(port)
	default:
		return ByName(name)
	}
}

// Detect walks detectOrderCtors and returns the first adapter whose
// backend is available and whose Supports answers true for path. A
// candidate whose backend is missing is silently skipped, not an error:
// e.g. a Go binary on a machine without dlv installed falls through to the
// native debugger rather than failing outright.
func Detect(path string, cache *classify.Cache) (Debugger, error) {
	for _, ctor := range detectOrderCtors() {
		d, err := ctor()
		if err != nil {
			continue
		}
		if d.Supports(path, cache) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("debugger: no debugger supports %q", path)
}
