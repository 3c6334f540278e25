package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/ipc"
)

// StatusCommand fetches and prints the daemon's STATUS report, per
// spec.md §6, matching original_source/daemon_functions.py's
// print_daemon_status.
type StatusCommand struct {
	Logger corelog.Logger
}

func (c *StatusCommand) Execute(_ []string) error {
	socketPath := ipc.DefaultStatusSocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		fmt.Println("Daemon is not running.")
		return nil
	}

	report, err := ipc.FetchStatus(socketPath)
	if err != nil {
		return fmt.Errorf("fetching daemon status: %w", err)
	}

	if report.ShuttingDown {
		fmt.Println("Daemon is shutting down. Current status:")
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status report: %w", err)
	}
	fmt.Println(string(body))
	return nil
}
