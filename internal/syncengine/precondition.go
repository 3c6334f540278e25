package syncengine

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// probeFileName is the marker rclone-bisync-manager expects at both the
// local and remote roots before it will touch a job, confirming the
// operator actually pointed it at the intended trees (spec.md §4.6).
const probeFileName = "RCLONE_TEST"

// checkLocalProbe mirrors original_source/utils.py's
// check_local_rclone_test: the probe file must exist directly on disk. A
// package-level var (rather than a plain func) lets engine tests swap in
// a fake without spawning a real rclone subprocess.
var checkLocalProbe = func(localPath string) bool {
	_, err := os.Stat(localPath + string(os.PathSeparator) + probeFileName)
	return err == nil
}

// checkRemoteProbe mirrors check_remote_rclone_test: `rclone lsf` the
// remote root and look for the probe file name in the listing.
var checkRemoteProbe = func(remotePath string) bool {
	out, err := exec.Command("rclone", "lsf", remotePath).Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == probeFileName {
			return true
		}
	}
	return false
}

// ensureLocalDirectory creates localPath if it does not already exist
// (spec.md §4.6's "local directory is created if absent").
func ensureLocalDirectory(localPath string) error {
	if _, err := os.Stat(localPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return fmt.Errorf("creating local directory %s: %w", localPath, err)
	}
	return nil
}

// hashWarningSubstring is the exact rclone log line that flags a
// known-problematic blank-hash condition (original_source/sync.py's
// check_for_hash_warnings).
const hashWarningSubstring = "WARNING: hash unexpectedly blank despite Fs support"

// logFileSize returns logPath's current size, or 0 if it doesn't exist yet,
// used to seed a job's first hash-warning scan offset so it starts from
// "now" rather than the beginning of a log file that may already contain
// stale warnings from a previous daemon run (original_source/sync.py
// records the log size immediately before invoking rclone).
func logFileSize(logPath string) int64 {
	info, err := os.Stat(logPath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// scanForHashWarning reads logPath from fromOffset to EOF in bounded
// chunks looking for hashWarningSubstring, returning the new EOF offset
// for the next call and whether the warning was seen this time. Scanning
// forward from a recorded offset (rather than re-reading the whole file)
// keeps repeated scans cheap across a long-lived log file.
func scanForHashWarning(logPath string, fromOffset int64) (newOffset int64, warned bool, err error) {
	info, statErr := os.Stat(logPath)
	if statErr != nil {
		return fromOffset, false, nil
	}
	newOffset = info.Size()
	if newOffset <= fromOffset {
		return newOffset, false, nil
	}

	f, err := os.Open(logPath)
	if err != nil {
		return fromOffset, false, fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(fromOffset, 0); err != nil {
		return fromOffset, false, fmt.Errorf("seeking log file %s: %w", logPath, err)
	}

	const chunkSize = 4096
	buf := make([]byte, chunkSize)
	var tail string
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := tail + string(buf[:n])
			if strings.Contains(chunk, hashWarningSubstring) {
				return newOffset, true, nil
			}
			if len(chunk) > len(hashWarningSubstring) {
				tail = chunk[len(chunk)-len(hashWarningSubstring):]
			} else {
				tail = chunk
			}
		}
		if readErr != nil {
			break
		}
	}
	return newOffset, false, nil
}
