package cli

import (
	"fmt"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/lock"
	"github.com/bisyncd/bisyncd/internal/state"
	"github.com/bisyncd/bisyncd/internal/syncengine"
)

// SyncCommand runs the Sync Engine directly, outside any daemon
// supervisor, against specified or (by default) every active job. It
// refuses to start while a daemon holds the single-instance lock, per
// spec.md §6's "sync ... refuses to start when the daemon lock exists".
type SyncCommand struct {
	ConfigFile  string   `long:"config" env:"BISYNCD_CONFIG" description:"Path to the YAML config file"`
	DryRun      bool     `short:"d" long:"dry-run" description:"Run without mutating state or remotes"`
	Resync      []string `long:"resync" description:"Force a resync for the named job(s)"`
	ForceBisync bool     `long:"force-bisync" description:"Set force_operation on every job"`

	Args struct {
		Jobs []string `positional-arg-name:"job" description:"Job(s) to sync; defaults to every active job"`
	} `positional-args:"yes"`

	Logger corelog.Logger
}

// Execute acquires the single-instance lock, loads the config, and runs
// the sync engine against each selected job in turn.
func (c *SyncCommand) Execute(_ []string) error {
	cfgPath := resolveConfigPath(c.ConfigFile)
	cacheDir := config.DefaultCacheDir()
	lp := lockPath(cacheDir)

	l, err := lock.Acquire(lp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonAlreadyRunning, err)
	}
	defer l.Release()

	overrides := config.CLIOverrides{
		DryRun:       c.DryRun,
		ResyncJobs:   c.Resync,
		ForceBisync:  c.ForceBisync,
		SpecificJobs: c.Args.Jobs,
	}

	cfg, err := config.NewLoader(cfgPath).Load(overrides)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	jobKeys, err := selectJobKeys(cfg, c.Args.Jobs)
	if err != nil {
		return err
	}

	store := state.New(cacheDir, c.Logger)
	store.Load()

	var notifier syncengine.Notifier
	if n := buildNotifier(cfg.NotifyEmail, c.Logger); n != nil {
		notifier = n
	}
	engine := syncengine.New(c.Logger, store, notifier)

	var failures int
	for _, key := range jobKeys {
		if err := engine.Process(cfg, key, false); err != nil {
			c.Logger.Errorf("[sync %q] %v", key, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d sync job(s) did not complete cleanly", failures, len(jobKeys))
	}
	return nil
}

// selectJobKeys validates explicitly named jobs or, with none given,
// returns every active job key, mirroring original_source/main.py's
// sync-command job selection.
func selectJobKeys(cfg *config.Config, requested []string) ([]string, error) {
	if len(requested) == 0 {
		var keys []string
		for key, job := range cfg.SyncJobs {
			if job.Active {
				keys = append(keys, key)
			}
		}
		return keys, nil
	}

	for _, key := range requested {
		if _, ok := cfg.SyncJobs[key]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSyncJob, key)
		}
	}
	return requested, nil
}
