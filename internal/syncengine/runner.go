package syncengine

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/armon/circbuf"
)

// outputCaptureBytes bounds the in-memory capture of rclone's stdout and
// stderr, the way the teacher's Execution uses a circbuf.Buffer to bound
// job output (core/common.go) regardless of how chatty the subprocess is.
const outputCaptureBytes = 64 * 1024

// runResult is the outcome of one rclone invocation.
type runResult struct {
	ExitCode int
	Output   string
}

// runRclone builds and runs `rclone <args...>`, optionally prefixed with
// cpulimit, capturing combined output into a bounded circular buffer
// (grounded on core/localjob.go's buildCommand + core/common.go's
// circbuf-backed Execution streams). It never returns an error for a
// non-zero rclone exit; that is communicated via runResult.ExitCode for
// the caller's exit-code map to interpret.
var runRclone = func(rcloneArgs []string, maxCPUPercent int) (runResult, error) {
	name := "rclone"
	argv := append([]string{"rclone"}, rcloneArgs...)
	if _, err := exec.LookPath("cpulimit"); err == nil {
		name = "cpulimit"
		argv = append([]string{"cpulimit", fmt.Sprintf("--limit=%d", maxCPUPercent), "--"}, argv...)
	}

	fullPath, err := exec.LookPath(name)
	if err != nil {
		return runResult{}, fmt.Errorf("look path %q: %w", name, err)
	}

	buf, err := circbuf.NewBuffer(outputCaptureBytes)
	if err != nil {
		return runResult{}, fmt.Errorf("allocating output buffer: %w", err)
	}

	cmd := &exec.Cmd{
		Path:   fullPath,
		Args:   argv,
		Stdout: buf,
		Stderr: buf,
		Env:    os.Environ(),
	}

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return runResult{}, fmt.Errorf("running rclone: %w", runErr)
		}
	}

	return runResult{ExitCode: exitCode, Output: buf.String()}, nil
}
