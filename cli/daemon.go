package cli

import (
	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/daemon"
)

// DaemonCommand runs the supervisor in the foreground until it receives a
// shutdown signal or a STOP command, per spec.md §4.8. Backgrounding it is
// left to the host (systemd unit, `nohup`, a process supervisor), matching
// spec.md §6's "platform-specific backgrounding left to the host".
type DaemonCommand struct {
	ConfigFile string `long:"config" env:"BISYNCD_CONFIG" description:"Path to the YAML config file"`
	DryRun     bool   `short:"d" long:"dry-run" description:"Run every job without mutating state or remotes"`

	Logger corelog.Logger
}

// Execute builds and runs a Supervisor, blocking until shutdown completes.
func (c *DaemonCommand) Execute(_ []string) error {
	cfgPath := resolveConfigPath(c.ConfigFile)
	cacheDir := config.DefaultCacheDir()

	overrides := config.CLIOverrides{DryRun: c.DryRun}

	sup := daemon.New(daemon.Options{
		ConfigPath: cfgPath,
		CacheDir:   cacheDir,
		LockPath:   lockPath(cacheDir),
		Overrides:  overrides,
		Log:        c.Logger,
	})

	// Best-effort peek at the config for notify_email: a failure here just
	// means the daemon starts without a notifier and boots into limbo the
	// normal way, where Supervisor.Run's own load attempt reports it.
	if loaded, err := config.NewLoader(cfgPath).Load(overrides); err == nil {
		if n := buildNotifier(loaded.NotifyEmail, c.Logger); n != nil {
			sup.SetNotifier(n)
		}
	}

	return sup.Run()
}
