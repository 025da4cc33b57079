// Package config loads dbgee's optional YAML preferences file. dbgee is
// primarily flag-driven (spec.md §6); this file only supplies defaults for
// flags the caller did not set, the same load → applyDefaults → validate
// shape the reference agent's configuration loader uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds dbgee's preferences-file defaults. Every field is optional;
// an absent or empty preferences file is not an error, it simply leaves
// every field at its zero value and every flag default stands unchanged.
type Config struct {
	// Debugger names the default debugger adapter ("gdb", "lldb", "dlv",
	// "debugpy", "stop-and-write-pid") used when -debugger is not passed.
	// Empty means "auto-detect".
	Debugger string `yaml:"debugger"`

	// Terminal names the default attach terminal ("tmux-window",
	// "tmux-pane", "vscode") used when -terminal is not passed. Empty
	// means "auto-detect".
	Terminal string `yaml:"terminal"`

	// HookSourceRoots lists source-directory prefixes (e.g. a monorepo's
	// several module roots). Load parses and validates it (no entry may be
	// empty); no subcommand reads it, and `-hook-source-dir` is always
	// resolved against the current working directory.
	HookSourceRoots []string `yaml:"hook_source_roots"`

	// LedgerPath overrides the default session-ledger database path
	// ($XDG_STATE_HOME/dbgee/ledger.db).
	LedgerPath string `yaml:"ledger_path"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

var validDebuggers = map[string]bool{
	"":                   true,
	"gdb":                true,
	"lldb":               true,
	"dlv":                true,
	"debugpy":            true,
	"stop-and-write-pid": true,
}

var validTerminals = map[string]bool{
	"":            true,
	"tmux-window": true,
	"tmux-pane":   true,
	"vscode":      true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultPath returns $XDG_CONFIG_HOME/dbgee/config.yaml, falling back to
// ~/.config/dbgee/config.yaml when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dbgee", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dbgee", "config.yaml"), nil
}

// Load reads and validates the preferences file at path. A missing file is
// not an error: Load returns a zero-valued, defaulted Config instead.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that enumerated fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if !validDebuggers[cfg.Debugger] {
		errs = append(errs, fmt.Errorf("debugger %q must be one of: gdb, lldb, dlv, debugpy, stop-and-write-pid", cfg.Debugger))
	}
	if !validTerminals[cfg.Terminal] {
		errs = append(errs, fmt.Errorf("terminal %q must be one of: tmux-window, tmux-pane, vscode", cfg.Terminal))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	for i, root := range cfg.HookSourceRoots {
		if root == "" {
			errs = append(errs, fmt.Errorf("hook_source_roots[%d]: must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
