package ux

import (
	"os"
	"path/filepath"
)

// DiscoverProjectFile looks for name in start and its parent directories.
// The search stops after the first directory containing .git, or at the
// filesystem root. It returns "" when the file is not found.
func DiscoverProjectFile(start, name string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
