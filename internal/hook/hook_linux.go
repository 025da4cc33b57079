//go:build linux

package hook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/dbgee/dbgee/internal/debugger"
	"github.com/dbgee/dbgee/internal/osutil"
	"github.com/dbgee/dbgee/internal/terminal"
)

// RunOpts configures a single hook-mode run.
type RunOpts struct {
	Command    string
	Args       []string
	Conditions []Condition
	Debugger   debugger.Debugger
	Terminal   terminal.Terminal
	Logger     *slog.Logger
}

// Run spawns Command under ptrace, follows every descendant it forks, and
// attaches Debugger to the first one that satisfies any Condition. If no
// descendant ever matches before the whole tree exits, Run returns nil
// without attaching anything, matching the reference implementation's "no
// process triggered the hook condition" outcome.
func Run(ctx context.Context, opts RunOpts) error {
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := osutil.StartTraced(cmd); err != nil {
		return fmt.Errorf("hook: spawn traced command: %w", err)
	}
	startPID := cmd.Process.Pid

	hookedPID, hookedPath, err := waitForMatch(startPID, opts.Conditions, opts.Logger)
	if err != nil {
		return fmt.Errorf("hook: wait for a matching process: %w", err)
	}
	if hookedPID == 0 {
		opts.Logger.Info("no process triggered the hook condition")
		return nil
	}

	if err := osutil.Detach(hookedPID, syscall.SIGSTOP); err != nil {
		return fmt.Errorf("hook: detach from hooked process %d (%s): %w", hookedPID, hookedPath, err)
	}
	if err := opts.Debugger.Attach(hookedPID, hookedPath); err != nil {
		return fmt.Errorf("hook: debugger attach to %d: %w", hookedPID, err)
	}
	if opts.Terminal != nil && opts.Debugger.HasAttachCommand() {
		if err := opts.Terminal.Open(opts.Debugger); err != nil {
			opts.Logger.Warn("failed to open attach terminal", "error", err)
		}
	}

	return waitStartPIDExitDetachOthers(startPID, opts.Logger)
}

// waitForMatch waits for SIGTRAP stops (new process images) until one of
// conditions matches the stopped process's executable, or every traced
// process has exited. It continues every other process it observes so the
// tree keeps making progress while the search continues.
func waitForMatch(startPID int, conditions []Condition, logger *slog.Logger) (int, string, error) {
	optionsSet := false
	for {
		res, err := osutil.Wait4(-1)
		if err != nil {
			return 0, "", fmt.Errorf("wait4: %w", err)
		}
		if res.NoChild {
			return 0, "", nil
		}

		switch {
		case res.Stopped && res.PtraceEvent != osutil.EventNone:
			logger.Debug("descendant forked", "pid", res.Pid, "child_pid", res.NewPid)
			if err := osutil.Cont(res.Pid, 0); err != nil {
				logger.Debug("ptrace cont parent after fork failed", "pid", res.Pid, "error", err)
			}
			if res.NewPid != 0 {
				if err := osutil.Cont(res.NewPid, 0); err != nil {
					logger.Debug("ptrace cont child after fork failed", "pid", res.NewPid, "error", err)
				}
			}

		case res.Stopped && res.StopSig == syscall.SIGTRAP:
			logger.Debug("trapped new process image", "pid", res.Pid)
			if res.Pid == startPID && !optionsSet {
				if err := osutil.SetTraceOptions(res.Pid); err != nil {
					return 0, "", fmt.Errorf("arm trace options on %d: %w", res.Pid, err)
				}
				optionsSet = true
			}

			exePath, err := exePathOf(res.Pid)
			if err != nil {
				logger.Debug("could not read exe path, letting it continue", "pid", res.Pid, "error", err)
				if err := osutil.Cont(res.Pid, 0); err != nil {
					logger.Debug("ptrace cont failed", "pid", res.Pid, "error", err)
				}
				continue
			}

			matched, err := anyConditionMatches(conditions, exePath)
			if err != nil {
				return 0, "", fmt.Errorf("evaluate hook conditions for %d (%s): %w", res.Pid, exePath, err)
			}
			if matched {
				return res.Pid, exePath, nil
			}
			if err := osutil.Cont(res.Pid, 0); err != nil {
				logger.Debug("ptrace cont failed", "pid", res.Pid, "error", err)
			}

		case res.Stopped:
			logger.Debug("tracee stopped by signal, passing it through", "pid", res.Pid, "signal", res.StopSig)
			if err := osutil.Cont(res.Pid, res.StopSig); err != nil {
				logger.Debug("ptrace cont with signal failed", "pid", res.Pid, "error", err)
			}

		case res.Exited, res.Signaled:
			logger.Debug("tracee exited", "pid", res.Pid)
		}
	}
}

// waitStartPIDExitDetachOthers waits for startPID to exit, detaching from
// every other traced process it observes along the way so none of them are
// left stopped once the hooked process has a debugger attached.
func waitStartPIDExitDetachOthers(startPID int, logger *slog.Logger) error {
	for {
		res, err := osutil.Wait4(-1)
		if err != nil {
			return fmt.Errorf("wait4: %w", err)
		}
		if res.NoChild {
			return nil
		}

		switch {
		case res.Exited:
			if res.Pid == startPID {
				return nil
			}

		case res.Stopped && res.PtraceEvent != osutil.EventNone:
			if err := osutil.Detach(res.Pid, 0); err != nil {
				logger.Debug("detach from parent after fork failed", "pid", res.Pid, "error", err)
			}
			if res.NewPid != 0 {
				if err := osutil.Detach(res.NewPid, 0); err != nil {
					logger.Debug("detach from child after fork failed", "pid", res.NewPid, "error", err)
				}
			}

		case res.Stopped:
			if err := osutil.Detach(res.Pid, res.StopSig); err != nil {
				logger.Debug("detach from stopped process failed", "pid", res.Pid, "error", err)
			}
		}
	}
}

func anyConditionMatches(conditions []Condition, exePath string) (bool, error) {
	for _, c := range conditions {
		ok, err := c.Matches(exePath)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func exePathOf(pid int) (string, error) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", fmt.Errorf("readlink /proc/%d/exe: %w", pid, err)
	}
	return path, nil
}
