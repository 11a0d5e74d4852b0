package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project directory holding config, logs and history.
const DirName = ".playcheck"

// FindProjectRoot returns the project root for start.
// Priority order:
//  1. PLAYCHECK_HOME environment variable (if set)
//  2. Nearest ancestor of start holding a .playcheck directory
//  3. start itself (fallback)
func FindProjectRoot(start string) (string, error) {
	if home := os.Getenv("PLAYCHECK_HOME"); home != "" {
		return home, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	current := abs
	for {
		info, err := os.Stat(filepath.Join(current, DirName))
		if err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return abs, nil
}

// ResolvePath anchors a relative path at root. Absolute paths are returned
// unchanged.
func ResolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}
