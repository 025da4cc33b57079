// Package classify answers "what kind of executable is this" by shelling
// out to the file(1) command and caching the result, the same pattern the
// reference agent uses for its own shared caches (one mutex-guarded map,
// looked up before doing the expensive thing).
package classify

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Cache memoizes `file <path>` output by absolute path. The zero value is
// ready to use.
type Cache struct {
	mu     sync.Mutex
	output map[string]string
}

// NewCache returns a ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{output: make(map[string]string)}
}

// FileType returns the raw stdout of `file <path>`, consulting (and
// populating) the cache first.
func (c *Cache) FileType(path string) (string, error) {
	c.mu.Lock()
	if out, ok := c.output[path]; ok {
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	out, err := exec.Command("file", path).Output()
	if err != nil {
		return "", fmt.Errorf("classify: run file %q: %w", path, err)
	}

	c.mu.Lock()
	if c.output == nil {
		c.output = make(map[string]string)
	}
	c.output[path] = string(out)
	c.mu.Unlock()
	return string(out), nil
}

// Is reports whether FileType(path) contains substr, the same
// substring-matching classification strategy the original implementation
// uses to tell ELF from Mach-O from shell scripts.
func (c *Cache) Is(path, substr string) (bool, error) {
	out, err := c.FileType(path)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, substr), nil
}

// CommandExists reports whether name resolves to an executable file
// somewhere on $PATH, replicating command_exists's manual PATH-splitting
// rather than relying on exec.LookPath so that the executable-bit check
// goes through the same IsExecutable helper used elsewhere in this package.
func CommandExists(name string) bool {
	for _, dir := range strings.Split(os.Getenv("PATH"), string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		if IsExecutable(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

// IsExecutable reports whether path is a regular file with at least one
// executable bit set.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// AbsPath resolves path to an absolute, symlink-free path, or returns an
// error naming what failed to resolve (the name parameter is used only to
// make that error message specific, e.g. "debuggee").
func AbsPath(path, name string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("classify: %s (path %q): %w", name, path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("classify: %s (path %q) does not exist: %w", name, path, err)
	}
	return resolved, nil
}

// ValidExecutablePath resolves path via AbsPath and additionally requires
// the result to be executable.
func ValidExecutablePath(path, name string) (string, error) {
	abs, err := AbsPath(path, name)
	if err != nil {
		return "", err
	}
	if !IsExecutable(abs) {
		return "", fmt.Errorf("classify: %s (%s) is not executable", name, abs)
	}
	return abs, nil
}
