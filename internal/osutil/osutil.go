// Package osutil wraps the raw process-control primitives dbgee needs:
// starting a traced child, waiting for its stops, and continuing or
// detaching from it. Platform-specific behavior lives in
// osutil_linux.go/osutil_darwin.go, split the way the reference agent
// splits its netlink-based process watcher into per-OS files.
package osutil

import "syscall"

// WaitResult describes one wait4-style status change reported for a
// traced process. At most one of Exited, Signaled, or Stopped is true;
// NoChild is true instead of any of those once the process (and all its
// tracees) have gone away and waiting would return ECHILD.
type WaitResult struct {
	Pid int

	Exited   bool
	ExitCode int

	Signaled bool
	TermSig  syscall.Signal

	Stopped bool
	StopSig syscall.Signal

	// PtraceEvent is EventFork, EventVfork, or EventClone for a
	// PTRACE_EVENT_FORK/VFORK/CLONE stop (EventNone otherwise): the tracee
	// in Pid just created a new thread of control and the kernel has
	// already begun tracing it. NewPid is valid only then.
	PtraceEvent int
	NewPid      int

	NoChild bool
}

// Ptrace event codes, mirrored here so callers outside this package never
// need to import syscall just to compare against PtraceEvent.
const (
	EventNone  = 0
	EventFork  = 1
	EventVfork = 2
	EventClone = 3
)
