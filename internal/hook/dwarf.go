package hook

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
)

// anyInDWARFDeclFile reports whether the DWARF line tables embedded in the
// ELF binary at exePath list any source file for which predicate returns
// true. A compilation unit whose DW_AT_comp_dir does not exist on this
// machine is skipped, since its relative paths cannot be resolved here; a
// listed source file that itself no longer exists here is also skipped
// rather than failing the whole check, mirroring how debug builds often
// reference paths from a different machine or container.
//
// Go's debug/dwarf.LineReader already resolves each file entry against its
// directory and the unit's comp_dir, so unlike a raw DWARF library this
// does not need to walk the line-table directory/file tables by hand.
func anyInDWARFDeclFile(exePath string, predicate func(string) bool) (bool, error) {
	f, err := elf.Open(exePath)
	if err != nil {
		return false, fmt.Errorf("hook: open %q as ELF: %w", exePath, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return false, fmt.Errorf("hook: read DWARF from %q: %w", exePath, err)
	}

	r := data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return false, fmt.Errorf("hook: iterate DWARF entries: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		matched, err := unitMatches(data, entry, predicate)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
		r.SkipChildren()
	}
	return false, nil
}

func unitMatches(data *dwarf.Data, cu *dwarf.Entry, predicate func(string) bool) (bool, error) {
	compDir, _ := cu.Val(dwarf.AttrCompDir).(string)
	if compDir == "" {
		return false, nil
	}
	if _, err := os.Stat(compDir); err != nil {
		return false, nil
	}

	lr, err := data.LineReader(cu)
	if err != nil {
		return false, fmt.Errorf("hook: read line table: %w", err)
	}
	if lr == nil {
		return false, nil
	}

	for _, file := range lr.Files() {
		if file == nil || file.Name == "" {
			continue
		}
		resolved, err := filepath.EvalSymlinks(file.Name)
		if err != nil {
			continue
		}
		if predicate(resolved) {
			return true, nil
		}
	}
	return false, nil
}
