package cli

import (
	"path/filepath"

	"github.com/bisyncd/bisyncd/internal/config"
)

// resolveConfigPath returns configured if set, else the XDG default.
func resolveConfigPath(configured string) string {
	if configured != "" {
		return configured
	}
	return config.DefaultConfigPath()
}

// lockPath is the single-instance lock file's fixed location under the
// cache directory, shared by the daemon and the one-shot sync command so
// either one refuses to start while the other holds it.
func lockPath(cacheDir string) string {
	return filepath.Join(cacheDir, "bisyncd.lock")
}
