//go:build linux

package osutil

import (
	"fmt"
	"os/exec"
	"syscall"
)

// StartTraced starts cmd with PTRACE_TRACEME armed in the child before its
// execve, the same protocol the reference Delve-style debuggers rely on:
// the kernel stops the child with SIGTRAP the instant its image is
// replaced, and because the parent called PTRACE_TRACEME on its behalf it
// is already the tracer, no PTRACE_ATTACH race required.
func StartTraced(cmd *exec.Cmd) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Ptrace = true
	return cmd.Start()
}

// Wait4 blocks for the next status change of pid (or any of its tracees
// when pid is -1) and decodes it into a WaitResult.
func Wait4(pid int) (WaitResult, error) {
	var status syscall.WaitStatus
	got, err := syscall.Wait4(pid, &status, 0, nil)
	if err != nil {
		if err == syscall.ECHILD {
			return WaitResult{NoChild: true}, nil
		}
		return WaitResult{}, fmt.Errorf("osutil: wait4: %w", err)
	}

	r := WaitResult{Pid: got}
	switch {
	case status.Exited():
		r.Exited = true
		r.ExitCode = status.ExitStatus()
	case status.Signaled():
		r.Signaled = true
		r.TermSig = status.Signal()
	case status.Stopped():
		r.Stopped = true
		r.StopSig = status.StopSignal()
		if trap := status.TrapCause(); trap != 0 {
			r.PtraceEvent = ptraceEventFromTrapCause(trap)
			if r.PtraceEvent != EventNone {
				msg, err := syscall.PtraceGetEventMsg(got)
				if err == nil {
					r.NewPid = int(msg)
				}
			}
		}
	}
	return r, nil
}

func ptraceEventFromTrapCause(trap int) int {
	switch trap {
	case syscall.PTRACE_EVENT_FORK:
		return EventFork
	case syscall.PTRACE_EVENT_VFORK:
		return EventVfork
	case syscall.PTRACE_EVENT_CLONE:
		return EventClone
	default:
		return EventNone
	}
}

// SetTraceOptions arms PTRACE_O_TRACEFORK/TRACECLONE/TRACEVFORK on pid so
// that every descendant it forks is reported as a trap rather than
// running untraced. Used only by the hook engine, which must follow an
// entire process tree rather than a single child.
func SetTraceOptions(pid int) error {
	opts := syscall.PTRACE_O_TRACEFORK | syscall.PTRACE_O_TRACECLONE | syscall.PTRACE_O_TRACEVFORK
	if err := syscall.PtraceSetOptions(pid, opts); err != nil {
		return fmt.Errorf("osutil: ptrace setoptions: %w", err)
	}
	return nil
}

// Cont resumes pid, optionally re-delivering sig (0 means deliver nothing).
func Cont(pid int, sig syscall.Signal) error {
	if err := syscall.PtraceCont(pid, int(sig)); err != nil {
		return fmt.Errorf("osutil: ptrace cont: %w", err)
	}
	return nil
}

// Detach stops tracing pid, optionally re-delivering sig as it does so.
// syscall.PtraceDetach does not take a signal argument, so this calls
// PTRACE_DETACH directly the way syscall's own ptrace helpers do.
func Detach(pid int, sig syscall.Signal) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_PTRACE, uintptr(syscall.PTRACE_DETACH), uintptr(pid), 0, uintptr(sig), 0, 0)
	if errno != 0 {
		return fmt.Errorf("osutil: ptrace detach: %w", errno)
	}
	return nil
}

// StopSignal sends SIGSTOP to pid. The controlled-start handshake uses this
// in addition to the implicit SIGTRAP stop so the debuggee stays parked
// even across a detach that might otherwise let it race ahead.
func StopSignal(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGSTOP); err != nil {
		return fmt.Errorf("osutil: sigstop: %w", err)
	}
	return nil
}

// Kill sends sig to pid.
func Kill(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
