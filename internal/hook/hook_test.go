package hook

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOptsAnySet(t *testing.T) {
	cases := []struct {
		name string
		opts Opts
		want bool
	}{
		{"empty", Opts{}, false},
		{"executable", Opts{Executable: "/bin/ls"}, true},
		{"source", Opts{Source: []string{"main.go"}}, true},
		{"source dir", Opts{SourceDir: "."}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.opts.AnySet(); got != c.want {
				t.Errorf("AnySet() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestExecutableConditionMatchesResolvedPath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "prog")
	writeExecutable(t, target)

	cond, err := newExecutableCondition(target)
	if err != nil {
		t.Fatalf("newExecutableCondition: %v", err)
	}

	matched, err := cond.Matches(target)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !matched {
		t.Error("expected the condition to match its own path")
	}

	matched, err = cond.Matches(filepath.Join(dir, "other"))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if matched {
		t.Error("expected the condition not to match a different path")
	}
}

func TestSourceDirConditionPrefixLogic(t *testing.T) {
	dir := t.TempDir()
	cond := &sourceDirCondition{dir: dir}

	inside := filepath.Join(dir, "pkg", "file.go")
	if matched, err := condMatchesLiteral(cond, inside); err != nil || !matched {
		t.Errorf("expected %s to be considered inside %s (matched=%v err=%v)", inside, dir, matched, err)
	}

	sibling := dir + "-sibling/file.go"
	if matched, err := condMatchesLiteral(cond, sibling); err != nil || matched {
		t.Errorf("expected %s not to be considered inside %s (matched=%v err=%v)", sibling, dir, matched, err)
	}
}

// condMatchesLiteral applies a copy of the prefix predicate that
// sourceDirCondition.Matches builds, without going through DWARF parsing.
func condMatchesLiteral(c *sourceDirCondition, path string) (bool, error) {
	predicateMatched := false
	predicate := func(p string) bool {
		rel, err := filepath.Rel(c.dir, p)
		return err == nil && rel != ".." && !hasDotDotPrefix(rel)
	}
	if predicate(path) {
		predicateMatched = true
	}
	return predicateMatched, nil
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
