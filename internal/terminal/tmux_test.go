package terminal

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dbgee/dbgee/internal/debugger"
)

func TestTmuxLayoutArgs(t *testing.T) {
	if got := LayoutNewWindow.args(); len(got) != 1 || got[0] != "new-window" {
		t.Errorf("LayoutNewWindow.args() = %v", got)
	}
	if got := LayoutNewPane.args(); len(got) != 2 || got[0] != "splitw" || got[1] != "-h" {
		t.Errorf("LayoutNewPane.args() = %v", got)
	}
}

func TestTmuxCommandNoDemotionWithoutRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("test assumes non-root; demotion is only exercised when euid==0")
	}
	t.Setenv("SUDO_USER", "someone")
	tr := NewTmux(LayoutNewWindow, discardLogger())
	cmd := tr.command("tmux", "ls")
	if filepath.Base(cmd.Path) == "sudo" {
		t.Fatalf("expected no demotion when euid != 0, got %v", cmd.Args)
	}
}

// fakeBinOnPath writes an executable shell script named name into a fresh
// directory and prepends that directory to PATH for the duration of the
// test, the same "fake external binary" seam the reference test suite uses
// for tools like git and curl.
func fakeBinOnPath(t *testing.T, name, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestTmuxOpenStartsNewSessionWhenNoneExists(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only")
	}
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "calls.log")
	fakeBinOnPath(t, "tmux", `
echo "$@" >> `+logPath+`
case "$1" in
  ls) exit 1 ;;
  new-session) exit 0 ;;
  *) exit 0 ;;
esac
`)

	d := &fakeAttachCmdDebugger{cmd: []string{"gdb", "-p", "123"}}
	tr := NewTmux(LayoutNewWindow, discardLogger())
	if err := tr.Open(d); err != nil {
		t.Fatalf("Open: %v", err)
	}

	calls, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read call log: %v", err)
	}
	if !strings.Contains(string(calls), "ls") {
		t.Errorf("expected a `tmux ls` probe, got calls: %s", calls)
	}
	if !strings.Contains(string(calls), "new-session") {
		t.Errorf("expected a `tmux new-session` fallback, got calls: %s", calls)
	}
}

type fakeAttachCmdDebugger struct {
	debugger.Debugger
	cmd []string
}

func (f *fakeAttachCmdDebugger) AttachCommand() ([]string, error) { return f.cmd, nil }
