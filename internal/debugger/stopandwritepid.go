package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dbgee/dbgee/internal/classify"
	"github.com/dbgee/dbgee/internal/ptrace"
)

// PidFile is the fixed path the StopAndWritePid adapter writes to,
// matching the original implementation's /tmp/dbgee_pid.
const PidFile = "/tmp/dbgee_pid"

// stopAndWritePid is the unconditional last-resort adapter: it performs a
// controlled start and writes the resulting PID to a well-known file,
// leaving the user to attach with whatever debugger they like by hand.
type stopAndWritePid struct {
	pid      int
	launched bool
}

// NewStopAndWritePid returns the last-resort adapter. It never fails to
// construct: unlike the other adapters it shells out to no backend
// command, so there is nothing to verify availability of.
func NewStopAndWritePid() (Debugger, error) { return &stopAndWritePid{}, nil }

func (s *stopAndWritePid) Name() string { return "stop-and-write-pid" }

func (s *stopAndWritePid) Launch(ctx context.Context, target string, args []string, logger *slog.Logger) (int, error) {
	hs, err := ptrace.Start(ctx, target, args, logger)
	if err != nil {
		return 0, fmt.Errorf("stop-and-write-pid: launch %q: %w", target, err)
	}
	s.pid = hs.Pid
	s.launched = true

	if err := os.WriteFile(PidFile, []byte(strconv.Itoa(hs.Pid)), 0o644); err != nil {
		return 0, fmt.Errorf("stop-and-write-pid: write %s: %w", PidFile, err)
	}
	logger.Info("debuggee stopped, no debugger adapter matched; attach manually", "pid", hs.Pid, "pid_file", PidFile)
	return hs.Pid, nil
}

func (s *stopAndWritePid) Attach(pid int, path string) error {
	s.pid = pid
	s.launched = true
	return os.WriteFile(PidFile, []byte(strconv.Itoa(pid)), 0o644)
}

// AttachCommand is undefined for this adapter: spec.md requires it to fail
// with an internal-bug error unconditionally.
func (s *stopAndWritePid) AttachCommand() ([]string, error) {
	return nil, fmt.Errorf("%w: stop-and-write-pid has no attach command, the PID file at %s is the only output", ErrInternal, PidFile)
}

// AttachInfo is undefined for this adapter: spec.md requires it to fail
// with an internal-bug error unconditionally.
func (s *stopAndWritePid) AttachInfo() (AttachInfo, error) {
	return nil, fmt.Errorf("%w: stop-and-write-pid has no attach info, the PID file at %s is the only output", ErrInternal, PidFile)
}

// Supports returns true unconditionally: this is the last-resort adapter.
func (s *stopAndWritePid) Supports(path string, cache *classify.Cache) bool {
	return true
}

// HasAttachCommand is always false: this adapter has no interactive
// attach command, only the PID file it writes itself. The orchestrator
// must not open an attach terminal for it.
func (s *stopAndWritePid) HasAttachCommand() bool { return false }
