package daemon

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/bisyncd/bisyncd/internal/config"
)

// filterMD5FileName is the cache-dir sidecar recording the exclusion
// file's last-seen hash, matching spec.md §6's `.filter_md5`.
const filterMD5FileName = ".filter_md5"

// CheckFilterChanged implements SPEC_FULL.md §12: hash cfg's exclusion
// file and compare it against the stored hash under cacheDir. On a
// mismatch (including "no stored hash yet"), it persists the new hash
// and reports changed=true so the caller can force a resync of every
// job, grounded on original_source/utils.py's handle_filter_changes.
func CheckFilterChanged(cfg *config.Config, cacheDir string) (changed bool, err error) {
	if cfg.ExclusionRulesFile == "" {
		return false, nil
	}

	current, err := hashFile(cfg.ExclusionRulesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return false, err
	}
	stampPath := filepath.Join(cacheDir, filterMD5FileName)

	stored, err := os.ReadFile(stampPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	if string(stored) == current {
		return false, nil
	}

	if err := os.WriteFile(stampPath, []byte(current), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // matches the original's content-change fingerprint, not a security boundary
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ForceResyncAllJobs sets ForceResync on every job in cfg, called once
// CheckFilterChanged reports a change.
func ForceResyncAllJobs(cfg *config.Config) {
	for _, job := range cfg.SyncJobs {
		job.ForceResync = true
	}
}
