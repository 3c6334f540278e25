package syncengine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sync engine, following the teacher's
// core/errors.go pattern of package-level errors.New values wrapped with
// fmt.Errorf("%w: ...") for context.
var (
	// ErrPreconditionMissing is returned when the RCLONE_TEST probe file is
	// absent on either side (spec.md §4.6, §7 SyncPreconditionMissing).
	ErrPreconditionMissing = errors.New("rclone_test probe file missing")

	// ErrStickyFailed is returned when a job's resync_status is FAILED and
	// no force_resync was requested (spec.md §4.6's sticky-FAILED rule).
	ErrStickyFailed = errors.New("resync is sticky-failed, manual intervention or force_resync required")
)

// RcloneExitError wraps rclone's (or cpulimit's) subprocess exit code, the
// way the teacher's NonZeroExitError wraps a container exit.
type RcloneExitError struct {
	ExitCode int
}

func (e RcloneExitError) Error() string {
	return fmt.Sprintf("rclone exited with code %d", e.ExitCode)
}

// IsRcloneExitError reports whether err is (or wraps) a RcloneExitError.
func IsRcloneExitError(err error) bool {
	var exitErr RcloneExitError
	return errors.As(err, &exitErr)
}
