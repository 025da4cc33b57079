// Package hook implements the descendant-matching "hook" mode: instead of
// attaching to the process dbgee itself launched, trace the whole process
// tree it spawns and attach to the first descendant that satisfies a
// condition (exact executable path, or built from a given source file or
// source directory per its DWARF debug info). Only Linux exposes the
// whole-tree ptrace options (PTRACE_O_TRACEFORK/CLONE/VFORK) this needs;
// see hook_other.go for the non-Linux stub.
package hook

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnsupported is returned by Run on platforms that cannot trace a whole
// process tree.
var ErrUnsupported = errors.New("hook: process-tree tracing is not supported on this platform")

// Opts mirrors the three mutually-independent --hook-* flags.
type Opts struct {
	Executable string   // empty: unset
	Source     []string // nil: unset
	SourceDir  string   // empty: unset
}

// AnySet reports whether at least one hook condition was requested.
func (o Opts) AnySet() bool {
	return o.Executable != "" || len(o.Source) > 0 || o.SourceDir != ""
}

// Condition decides whether the process whose executable is at exePath is
// the one dbgee should attach to.
type Condition interface {
	Matches(exePath string) (bool, error)
}

// BuildConditions turns Opts into the set of Conditions to evaluate against
// every new process the hook engine observes. A descendant matches if any
// condition matches (logical OR), same as the reference implementation.
func BuildConditions(opts Opts) ([]Condition, error) {
	var conditions []Condition
	if opts.Executable != "" {
		c, err := newExecutableCondition(opts.Executable)
		if err != nil {
			return nil, fmt.Errorf("hook: build executable condition: %w", err)
		}
		conditions = append(conditions, c)
	}
	if len(opts.Source) > 0 {
		c, err := newSourceCondition(opts.Source)
		if err != nil {
			return nil, fmt.Errorf("hook: build source condition: %w", err)
		}
		conditions = append(conditions, c)
	}
	if opts.SourceDir != "" {
		c, err := newSourceDirCondition(opts.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("hook: build source-dir condition: %w", err)
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

type executableCondition struct {
	path string
}

func newExecutableCondition(path string) (Condition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path of %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", abs, err)
	}
	return &executableCondition{path: resolved}, nil
}

func (c *executableCondition) Matches(exePath string) (bool, error) {
	return c.path == exePath, nil
}

type sourceCondition struct {
	paths map[string]bool
}

func newSourceCondition(sources []string) (Condition, error) {
	paths := make(map[string]bool, len(sources))
	for _, s := range sources {
		resolved, err := filepath.EvalSymlinks(s)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", s, err)
		}
		paths[resolved] = true
	}
	return &sourceCondition{paths: paths}, nil
}

func (c *sourceCondition) Matches(exePath string) (bool, error) {
	return anyInDWARFDeclFile(exePath, func(p string) bool { return c.paths[p] })
}

type sourceDirCondition struct {
	dir string
}

func newSourceDirCondition(dir string) (Condition, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", dir, err)
	}
	return &sourceDirCondition{dir: resolved}, nil
}

func (c *sourceDirCondition) Matches(exePath string) (bool, error) {
	return anyInDWARFDeclFile(exePath, func(p string) bool {
		rel, err := filepath.Rel(c.dir, p)
		return err == nil && rel != ".." && !hasDotDotPrefix(rel)
	})
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
