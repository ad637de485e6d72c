package sequences

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SearchDirs returns the directories tried for a nested reference, in
// precedence order: the parent table's directory, the loader's extra search
// paths, then the working directory.
func (l *Loader) SearchDirs(parent *Table) []string {
	paths := make([]string, 0, 2+len(l.SearchPaths))
	if parent != nil && parent.Dir() != "" {
		paths = append(paths, parent.Dir())
	}
	for _, dir := range l.SearchPaths {
		if strings.TrimSpace(dir) != "" {
			paths = append(paths, dir)
		}
	}
	return append(paths, ".")
}

// Resolve maps a nested sequence reference to a file path with first-hit
// precedence. Absolute references are used as-is.
func (l *Loader) Resolve(ref string, parent *Table) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("nested sequence reference is empty")
	}
	if filepath.IsAbs(ref) {
		return ref, nil
	}

	for _, dir := range l.SearchDirs(parent) {
		candidate := filepath.Join(dir, ref)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	// Fall through with the reference as given so the read error names it.
	return ref, nil
}
