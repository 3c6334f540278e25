package cli

import (
	"fmt"
	"os"

	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/ipc"
)

// ReloadCommand sends RELOAD to a running daemon's control socket, per
// spec.md §4.7/§6.
type ReloadCommand struct {
	Logger corelog.Logger
}

func (c *ReloadCommand) Execute(_ []string) error {
	socketPath := ipc.DefaultStatusSocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		fmt.Println("Daemon is not running.")
		return nil
	}

	ok, message, err := ipc.SendReload(socketPath)
	if err != nil {
		return fmt.Errorf("reloading daemon configuration: %w", err)
	}
	if !ok {
		return fmt.Errorf("daemon rejected reload: %s", message)
	}
	fmt.Println("Configuration reloaded successfully.")
	return nil
}
