// Package cli wires github.com/jessevdk/go-flags subcommands onto the
// daemon supervisor, sync engine, and control-socket client, mirroring
// ofelia.go's parser.AddCommand structure with one Command type per
// subcommand.
package cli

import "errors"

// ErrDaemonAlreadyRunning is returned by the sync command when the daemon
// lock file names a live bisyncd instance, per spec.md §6.
var ErrDaemonAlreadyRunning = errors.New("daemon is already running, use 'bisyncd stop' before running sync manually")

// ErrUnknownSyncJob is returned when a job named on the command line isn't
// present in the loaded configuration.
var ErrUnknownSyncJob = errors.New("sync job not found in configuration")
