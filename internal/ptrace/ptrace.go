// Package ptrace implements dbgee's controlled-start handshake: spawn the
// debuggee, let it run exactly far enough to reach its own entry point,
// and leave it stopped there so an external debugger can attach.
package ptrace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/dbgee/dbgee/internal/osutil"
)

// Handshake is the result of a successful controlled start: the debuggee's
// PID, parked with SIGSTOP, ptrace already detached.
type Handshake struct {
	Pid int
}

// Start spawns path with args under ptrace, waits for the kernel-delivered
// SIGTRAP at its entry point, sends SIGSTOP, and detaches. This mirrors
// the original implementation's fork_exec_stop: traceme in the child,
// wait for the first SIGTRAP in the parent, stop, detach.
//
// While waiting, Start installs a SIGINT handler that kills the stopped
// child outright (mirroring ignore_sigint/kill9_child_by_sigint): without
// it, Ctrl-C during the handshake would leave an orphaned stopped process
// behind with no debugger ever attaching to it.
func Start(ctx context.Context, path string, args []string, logger *slog.Logger) (*Handshake, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := osutil.StartTraced(cmd); err != nil {
		return nil, fmt.Errorf("ptrace: start %q: %w", path, err)
	}
	pid := cmd.Process.Pid

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			logger.Warn("interrupted before debugger attached, killing debuggee", "pid", pid)
			_ = osutil.Kill(pid, syscall.SIGKILL)
		}
	}()

	for {
		res, err := osutil.Wait4(pid)
		if err != nil {
			return nil, fmt.Errorf("ptrace: wait for entry trap: %w", err)
		}
		if res.NoChild || res.Exited || res.Signaled {
			return nil, fmt.Errorf("ptrace: %s exited before reaching its entry point", path)
		}
		if res.Stopped {
			if res.StopSig != syscall.SIGTRAP {
				logger.Warn("debuggee stopped on unexpected signal while waiting for entry trap, continuing", "signal", res.StopSig)
				if err := osutil.Cont(pid, 0); err != nil {
					return nil, fmt.Errorf("ptrace: continue past unexpected stop: %w", err)
				}
				continue
			}
			break
		}
	}

	if err := osutil.StopSignal(pid); err != nil {
		return nil, fmt.Errorf("ptrace: stop debuggee: %w", err)
	}
	if err := osutil.Detach(pid, 0); err != nil {
		return nil, fmt.Errorf("ptrace: detach from debuggee: %w", err)
	}

	return &Handshake{Pid: pid}, nil
}

// WaitExit blocks until pid exits and returns its exit code, mirroring
// wait_pid_exit: a Signaled exit is reported as exit code 130 (128+SIGINT),
// matching typical shell conventions, and a process that has already gone
// away (ECHILD) is reported as a clean exit.
func WaitExit(pid int) (int, error) {
	for {
		res, err := osutil.Wait4(pid)
		if err != nil {
			return 0, fmt.Errorf("ptrace: wait for exit: %w", err)
		}
		if res.NoChild {
			return 0, nil
		}
		if res.Exited {
			return res.ExitCode, nil
		}
		if res.Signaled {
			return 130, nil
		}
		if res.Stopped {
			// No longer a tracer at this point (Start detached); a job-control
			// stop is resumed with SIGCONT rather than PTRACE_CONT.
			_ = osutil.Kill(pid, syscall.SIGCONT)
		}
	}
}
