package cli

import (
	"fmt"
	"os"

	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/ipc"
)

// StopCommand sends STOP to a running daemon's control socket, per
// spec.md §6, matching original_source/daemon_functions.py's stop_daemon.
type StopCommand struct {
	Logger corelog.Logger
}

func (c *StopCommand) Execute(_ []string) error {
	socketPath := ipc.DefaultStatusSocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		fmt.Println("Daemon is not running.")
		return nil
	}

	message, err := ipc.SendStop(socketPath)
	if err != nil {
		return fmt.Errorf("stopping daemon: %w", err)
	}
	fmt.Println(message + " Use 'bisyncd status' to check progress.")
	return nil
}
