package wrap_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbgee/dbgee/internal/wrap"
)

func makeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho original\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")

	wrapped, err := wrap.IsWrapped(target)
	if err != nil {
		t.Fatalf("IsWrapped (pre): %v", err)
	}
	if wrapped {
		t.Fatal("freshly created executable reported as already wrapped")
	}

	if err := wrap.Wrap(target, "/usr/local/bin/dbgee run"); err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	wrapped, err = wrap.IsWrapped(target)
	if err != nil {
		t.Fatalf("IsWrapped (post): %v", err)
	}
	if !wrapped {
		t.Fatal("expected target to be wrapped")
	}

	backup := wrap.BackupPath(target)
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("expected backup at %s: %v", backup, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat shim: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatal("expected shim to remain executable")
	}

	if err := wrap.Unwrap(target); err != nil {
		t.Fatalf("Unwrap: %v", err)
	}

	wrapped, err = wrap.IsWrapped(target)
	if err != nil {
		t.Fatalf("IsWrapped (restored): %v", err)
	}
	if wrapped {
		t.Fatal("expected target to be unwrapped after Unwrap")
	}
	if _, err := os.Stat(backup); !os.IsNotExist(err) {
		t.Fatalf("expected backup to be gone after Unwrap, stat error: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read restored target: %v", err)
	}
	if !strings.Contains(string(content), "echo original") {
		t.Fatal("restored target does not contain original content")
	}
}

func TestDoubleWrapRejected(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")

	if err := wrap.Wrap(target, "/usr/local/bin/dbgee run"); err != nil {
		t.Fatalf("first Wrap: %v", err)
	}
	if err := wrap.Wrap(target, "/usr/local/bin/dbgee run"); err == nil {
		t.Fatal("expected second Wrap to fail")
	}
}

func TestDoubleUnwrapRejected(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")

	if err := wrap.Unwrap(target); err == nil {
		t.Fatal("expected Unwrap of a never-wrapped target to fail")
	}

	if err := wrap.Wrap(target, "/usr/local/bin/dbgee run"); err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if err := wrap.Unwrap(target); err != nil {
		t.Fatalf("first Unwrap: %v", err)
	}
	if err := wrap.Unwrap(target); err == nil {
		t.Fatal("expected second Unwrap to fail")
	}
}

func TestResolveOriginal(t *testing.T) {
	dir := t.TempDir()
	target := makeExecutable(t, dir, "prog")

	resolved, err := wrap.ResolveOriginal(target)
	if err != nil {
		t.Fatalf("ResolveOriginal (unwrapped): %v", err)
	}
	if resolved != target {
		t.Fatalf("expected unwrapped target to resolve to itself, got %s", resolved)
	}

	if err := wrap.Wrap(target, "/usr/local/bin/dbgee run"); err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	resolved, err = wrap.ResolveOriginal(target)
	if err != nil {
		t.Fatalf("ResolveOriginal (wrapped): %v", err)
	}
	if resolved != wrap.BackupPath(target) {
		t.Fatalf("expected wrapped target to resolve to its backup, got %s", resolved)
	}
}

func TestReconstructRunCommandEscapesArguments(t *testing.T) {
	cmd := wrap.ReconstructRunCommand("/usr/local/bin/dbgee", []string{"-debugger", "it's-gdb"})
	if !strings.Contains(cmd, `it'\''s-gdb`) {
		t.Fatalf("expected embedded quote to be escaped, got: %s", cmd)
	}
	if !strings.HasPrefix(cmd, "'/usr/local/bin/dbgee' run") {
		t.Fatalf("expected command to start with the dbgee binary and 'run', got: %s", cmd)
	}
}
