// Command bisyncd drives rclone bisync across configured sync jobs as a
// long-running daemon, or performs a one-shot sync, per spec.md.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/bisyncd/bisyncd/cli"
	"github.com/bisyncd/bisyncd/internal/corelog"
)

func main() {
	// Pre-parse --log-level so the logger exists before any command's own
	// flags are fully parsed, mirroring ofelia.go's
	// pre-parse-then-build-logger sequence. There is no --console-log
	// flag: the logger always writes text-formatted lines to stderr.
	var pre struct {
		LogLevel string `long:"log-level"`
	}
	args := os.Args[1:]
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	log, err := corelog.New(pre.LogLevel, false)
	if err != nil {
		os.Stderr.WriteString("bisyncd: " + err.Error() + "\n")
		os.Exit(1)
	}

	parser := flags.NewNamedParser("bisyncd", flags.Default)

	_, _ = parser.AddCommand("daemon", "run the sync daemon", "", &cli.DaemonCommand{Logger: log})
	_, _ = parser.AddCommand("sync", "perform a one-shot sync outside the daemon", "", &cli.SyncCommand{Logger: log})
	_, _ = parser.AddCommand("add-sync", "enqueue job(s) on a running daemon", "", &cli.AddSyncCommand{Logger: log})
	_, _ = parser.AddCommand("status", "print the running daemon's status", "", &cli.StatusCommand{Logger: log})
	_, _ = parser.AddCommand("stop", "ask the running daemon to shut down", "", &cli.StopCommand{Logger: log})
	_, _ = parser.AddCommand("reload", "ask the running daemon to reload its config", "", &cli.ReloadCommand{Logger: log})
	_, _ = parser.AddCommand("doctor", "diagnose the environment and config", "", &cli.DoctorCommand{Logger: log})

	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		var flagErr *flags.Error
		if errors.As(err, &flagErr) {
			parser.WriteHelp(os.Stderr)
			os.Exit(1)
		}
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
