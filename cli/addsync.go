package cli

import (
	"fmt"
	"os"

	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/ipc"
)

// AddSyncCommand asks a running daemon's add-sync socket to enqueue one or
// more jobs for immediate execution, per spec.md §6.
type AddSyncCommand struct {
	ForceBisync bool `long:"force-bisync" description:"Set force_operation for the enqueued job(s)"`

	Args struct {
		Jobs []string `positional-arg-name:"job" description:"Name(s) of the sync job(s) to enqueue"`
	} `positional-args:"yes" required:"yes"`

	Logger corelog.Logger
}

// Execute sends one add-sync request per named job and reports each
// outcome, matching original_source/main.py's add_sync_jobs behavior of
// reporting success or the daemon's error message per job.
func (c *AddSyncCommand) Execute(_ []string) error {
	socketPath := ipc.DefaultAddSyncSocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		return fmt.Errorf("daemon is not running")
	}

	var failures int
	for _, job := range c.Args.Jobs {
		if err := ipc.SendAddSync(socketPath, job, c.ForceBisync); err != nil {
			c.Logger.Errorf("add-sync %q: %v", job, err)
			failures++
			continue
		}
		c.Logger.Noticef("enqueued sync job %q", job)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d add-sync request(s) failed", failures, len(c.Args.Jobs))
	}
	return nil
}
