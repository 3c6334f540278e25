package syncengine

import (
	"os"

	"github.com/bisyncd/bisyncd/internal/config"
)

// operation distinguishes which operation-specific option map applies.
type operation string

const (
	opResync operation = "resync"
	opBisync operation = "bisync"
)

// buildRcloneArgs assembles the option flags for one phase per spec.md
// §4.6's 5-step precedence order (later steps override earlier ones at
// the same key), grounded on original_source/sync.py's get_rclone_args.
// The leading `rclone bisync <remote> <local> [--resync]` positional
// arguments are added by the caller; this only returns option flags.
func buildRcloneArgs(cfg *config.Config, job *config.SyncJobConfig, op operation) []string {
	var args []string

	// 1. Engine-injected defaults.
	if cfg.RedirectRcloneLogOutput && cfg.LogFilePath != "" {
		args = append(args, "--log-file", cfg.LogFilePath)
	}
	if cfg.ExclusionRulesFile != "" {
		if _, err := os.Stat(cfg.ExclusionRulesFile); err == nil {
			args = append(args, "--exclude-from", cfg.ExclusionRulesFile)
		}
	}

	// 2-4. Merge global -> operation-specific -> job-local option maps,
	// each later map overriding a key set by an earlier one.
	merged := make(config.OptionMap)
	mergeInto(merged, cfg.RcloneOptions)
	switch op {
	case opBisync:
		mergeInto(merged, cfg.BisyncOptions)
	case opResync:
		mergeInto(merged, cfg.ResyncOptions)
	}
	mergeInto(merged, job.RcloneOptions)

	args = append(args, config.Encode(merged)...)

	// 5. CLI-derived overrides, applied last so they always win.
	if cfg.EffectiveDryRun(job) {
		args = append(args, "--dry-run")
	}
	if job.ForceOperation {
		args = append(args, "--force")
	}

	return args
}

func mergeInto(dst, src config.OptionMap) {
	for k, v := range src {
		dst[k] = v
	}
}
