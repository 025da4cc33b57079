package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbgee/dbgee/internal/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	return f.Name()
}

const validYAML = `
debugger: lldb
terminal: tmux-pane
hook_source_roots:
  - /src/monorepo/service-a
  - /src/monorepo/service-b
ledger_path: /tmp/dbgee-test-ledger.db
log_level: debug
`

func TestLoad_Valid(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Debugger != "lldb" {
		t.Errorf("Debugger = %q, want %q", cfg.Debugger, "lldb")
	}
	if cfg.Terminal != "tmux-pane" {
		t.Errorf("Terminal = %q, want %q", cfg.Terminal, "tmux-pane")
	}
	if cfg.LedgerPath != "/tmp/dbgee-test-ledger.db" {
		t.Errorf("LedgerPath = %q", cfg.LedgerPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if len(cfg.HookSourceRoots) != 2 {
		t.Fatalf("len(HookSourceRoots) = %d, want 2", len(cfg.HookSourceRoots))
	}
	if cfg.HookSourceRoots[0] != "/src/monorepo/service-a" {
		t.Errorf("HookSourceRoots[0] = %q", cfg.HookSourceRoots[0])
	}
}

func TestLoad_Empty(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Debugger != "" {
		t.Errorf("Debugger = %q, want empty (auto-detect)", cfg.Debugger)
	}
	if cfg.Terminal != "" {
		t.Errorf("Terminal = %q, want empty (auto-detect)", cfg.Terminal)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "nonexistent.yaml")
	cfg, err := config.Load(missingPath)
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_InvalidDebugger(t *testing.T) {
	path := writeTemp(t, "debugger: rr\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid debugger, got nil")
	}
	if !strings.Contains(err.Error(), "debugger") {
		t.Errorf("error %q does not mention debugger", err.Error())
	}
}

func TestLoad_InvalidTerminal(t *testing.T) {
	path := writeTemp(t, "terminal: xterm\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid terminal, got nil")
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Errorf("error %q does not mention terminal", err.Error())
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeTemp(t, "log_level: verbose\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error %q does not mention log_level", err.Error())
	}
}

func TestLoad_EmptyHookSourceRoot(t *testing.T) {
	path := writeTemp(t, "hook_source_roots:\n  - \"\"\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for empty hook_source_roots entry, got nil")
	}
	if !strings.Contains(err.Error(), "hook_source_roots") {
		t.Errorf("error %q does not mention hook_source_roots", err.Error())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, ":::invalid yaml:::")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}
