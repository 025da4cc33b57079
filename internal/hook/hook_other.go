//go:build !linux

package hook

import (
	"context"
	"log/slog"

	"github.com/dbgee/dbgee/internal/debugger"
	"github.com/dbgee/dbgee/internal/terminal"
)

// RunOpts mirrors the Linux RunOpts so callers can build it without a
// build-tag switch of their own; only Run's behavior differs.
type RunOpts struct {
	Command    string
	Args       []string
	Conditions []Condition
	Debugger   debugger.Debugger
	Terminal   terminal.Terminal
	Logger     *slog.Logger
}

// Run always fails on non-Linux platforms: following a whole process tree
// requires PTRACE_O_TRACEFORK/CLONE/VFORK, which only Linux's ptrace
// implements.
func Run(ctx context.Context, opts RunOpts) error {
	return ErrUnsupported
}
