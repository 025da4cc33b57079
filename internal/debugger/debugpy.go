package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/dbgee/dbgee/internal/classify"
)

// defaultDebugpyPort matches the original implementation's hardcoded
// localhost:5679 default, shared with Delve since the two are never
// active for the same debuggee.
const defaultDebugpyPort = 5679

// debugpy launches a Python interpreter running `-m debugpy` in
// wait-for-client mode. It always forces the IDE terminal: debugpy has no
// interactive CLI attach command of its own, only the IDE protocol.
type debugpy struct {
	python   string
	port     int
	launched bool
}

// NewDebugpy returns the debugpy adapter, probing for a usable Python
// interpreter at construction time the way the original implementation's
// PythonDebugger::build does (python3 preferred over python). It returns
// an error if neither interpreter is on $PATH, per spec.md §4.E/§7: a
// missing backend must surface before any side effect rather than failing
// later at Launch.
func NewDebugpy() (Debugger, error) {
	return NewDebugpyWithPort(0)
}

// NewDebugpyWithPort returns the debugpy adapter listening on port, or the
// default port if port is 0, or an error if no Python interpreter is
// found.
func NewDebugpyWithPort(port int) (Debugger, error) {
	python := "python3"
	if !classify.CommandExists(python) {
		python = "python"
		if !classify.CommandExists(python) {
			return nil, fmt.Errorf("debugpy: no python3 or python found on PATH")
		}
	}
	if port == 0 {
		port = defaultDebugpyPort
	}
	return &debugpy{python: python, port: port}, nil
}

func (p *debugpy) Name() string { return "debugpy" }

func (p *debugpy) ForcedTerminal() string { return "vscode" }

func (p *debugpy) Launch(ctx context.Context, target string, args []string, logger *slog.Logger) (int, error) {
	argv := []string{"-m", "debugpy", "--wait-for-client", "--listen", strconv.Itoa(p.port), target}
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, p.python, argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("debugpy: launch %q: %w", target, err)
	}
	p.launched = true

	time.Sleep(1 * time.Second)

	return cmd.Process.Pid, nil
}

func (p *debugpy) Attach(pid int, path string) error {
	return fmt.Errorf("%w: debugpy.Attach is not supported; debugpy is not used by the hook engine", ErrInternal)
}

// AttachCommand returns an informational command line rather than an
// error: debugpy's real attach path is the IDE handoff (see ForcedTerminal),
// but every adapter except StopAndWritePid must answer this query
// successfully once launched, so this documents the listen address for a
// caller that still wants a command line to show the user.
func (p *debugpy) AttachCommand() ([]string, error) {
	if !p.launched {
		return nil, fmt.Errorf("%w: debugpy.AttachCommand called before Launch", ErrInternal)
	}
	return []string{p.python, "-c", fmt.Sprintf("import debugpy; debugpy.connect(('localhost', %d))", p.port)}, nil
}

func (p *debugpy) AttachInfo() (AttachInfo, error) {
	if !p.launched {
		return nil, fmt.Errorf("%w: debugpy.AttachInfo called before Launch", ErrInternal)
	}
	return AttachInfo{
		KeyTypeHint:     "python",
		KeyDebuggerPort: strconv.Itoa(p.port),
	}, nil
}

// HasAttachCommand is always true: debugpy always answers AttachCommand
// (with the informational connect snippet) once launched.
func (p *debugpy) HasAttachCommand() bool { return true }

// Supports detects "Python" in the classifier's file-type output.
func (p *debugpy) Supports(path string, cache *classify.Cache) bool {
	ok, err := cache.Is(path, "Python")
	return err == nil && ok
}
