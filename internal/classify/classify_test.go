package classify_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dbgee/dbgee/internal/classify"
)

func makeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCacheFileTypeIsMemoized(t *testing.T) {
	dir := t.TempDir()
	path := makeExecutable(t, dir, "probe.sh", "#!/bin/sh\necho hi\n")

	c := classify.NewCache()
	first, err := c.FileType(path)
	if err != nil {
		t.Fatalf("FileType: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty file(1) output")
	}

	// Remove the file; a cached lookup must not need to re-run file(1).
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := c.FileType(path)
	if err != nil {
		t.Fatalf("FileType (cached): %v", err)
	}
	if second != first {
		t.Fatalf("cached FileType changed: %q != %q", second, first)
	}
}

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := makeExecutable(t, dir, "exe", "#!/bin/sh\n")
	notExe := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(notExe, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !classify.IsExecutable(exe) {
		t.Errorf("expected %s to be executable", exe)
	}
	if classify.IsExecutable(notExe) {
		t.Errorf("expected %s to not be executable", notExe)
	}
	if classify.IsExecutable(filepath.Join(dir, "missing")) {
		t.Error("expected missing file to not be executable")
	}
}

func TestValidExecutablePathRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	notExe := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(notExe, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := classify.ValidExecutablePath(notExe, "debuggee"); err == nil {
		t.Error("expected error for non-executable path")
	}
}

func TestCommandExistsFindsShell(t *testing.T) {
	if !classify.CommandExists("sh") {
		t.Error("expected sh to be found on PATH")
	}
	if classify.CommandExists("dbgee-definitely-not-a-real-command") {
		t.Error("expected nonexistent command to not be found")
	}
}
