// Package config loads and validates bisyncd's YAML configuration.
package config

import "time"

// OptionValue is one entry of a rclone_options/bisync_options/resync_options
// map. YAML unmarshals it to nil, bool, string, or []any; the Encode function
// interprets it per spec.md §4.6 (null -> bare flag, true -> bare flag,
// false -> omit, list -> repeated flag, scalar -> flag + value).
type OptionValue = any

// OptionMap is a rclone option-name -> OptionValue mapping. Reserved keys
// that rclone-bisync-manager itself injects (resync, bisync, log-file)
// are rejected by Validate.
type OptionMap map[string]OptionValue

// disallowedOptionKeys holds the option names the engine injects itself;
// a job or global option map may not override them.
var disallowedOptionKeys = map[string]bool{
	"resync":   true,
	"bisync":   true,
	"log-file": true,
}

// SyncJobConfig is one named sync endpoint, see spec.md §3.
type SyncJobConfig struct {
	Local          string    `yaml:"local" validate:"required"`
	RcloneRemote   string    `yaml:"rclone_remote" validate:"required"`
	Remote         string    `yaml:"remote" validate:"required"`
	Schedule       string    `yaml:"schedule" validate:"required"`
	Active         bool      `yaml:"active" default:"true"`
	DryRun         bool      `yaml:"dry_run" default:"false"`
	ForceResync    bool      `yaml:"force_resync" default:"false"`
	ForceOperation bool      `yaml:"force_operation" default:"false"`
	RcloneOptions  OptionMap `yaml:"rclone_options"`
	BisyncOptions  OptionMap `yaml:"bisync_options"`
	ResyncOptions  OptionMap `yaml:"resync_options"`
}

// NotifyEmailConfig is the supplemental sticky-error notification block
// (SPEC_FULL.md §11), unset by default.
type NotifyEmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" default:"587"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Enabled reports whether enough fields are set to attempt a send.
func (n *NotifyEmailConfig) Enabled() bool {
	return n != nil && n.SMTPHost != "" && n.From != "" && n.To != ""
}

// Config is the global, validated, immutable configuration snapshot handed
// to every component for the lifetime of one run (spec.md §3).
type Config struct {
	LocalBasePath           string                   `yaml:"local_base_path" validate:"required"`
	ExclusionRulesFile      string                   `yaml:"exclusion_rules_file"`
	MaxCPUUsagePercent      int                      `yaml:"max_cpu_usage_percent" default:"100" validate:"min=0,max=100"`
	RedirectRcloneLogOutput bool                     `yaml:"redirect_rclone_log_output"`
	RunMissedJobs           bool                     `yaml:"run_missed_jobs"`
	RunInitialSyncOnStartup bool                     `yaml:"run_initial_sync_on_startup" default:"true"`
	DryRun                  bool                     `yaml:"dry_run"`
	LogFilePath             string                   `yaml:"log_file_path"`
	RcloneOptions           OptionMap                `yaml:"rclone_options"`
	BisyncOptions           OptionMap                `yaml:"bisync_options"`
	ResyncOptions           OptionMap                `yaml:"resync_options"`
	NotifyEmail             *NotifyEmailConfig        `yaml:"notify_email"`
	SyncJobs                map[string]*SyncJobConfig `yaml:"sync_jobs" validate:"required,min=1,dive"`
}

// CLIOverrides are applied to a parsed Config as an explicit second step,
// never by ambient mutation (spec.md §4.1, SPEC_FULL.md Design Notes).
type CLIOverrides struct {
	DryRun        bool
	ResyncJobs    []string
	ForceBisync   bool
	SpecificJobs  []string
}

// Apply mutates cfg in place per spec.md §4.1: --dry-run sets global
// dry_run; --resync JOB... sets each job's force_resync; --force-bisync
// sets force_operation on every job.
func (o CLIOverrides) Apply(cfg *Config) {
	if o.DryRun {
		cfg.DryRun = true
	}
	for _, key := range o.ResyncJobs {
		if job, ok := cfg.SyncJobs[key]; ok {
			job.ForceResync = true
		}
	}
	if o.ForceBisync {
		for _, job := range cfg.SyncJobs {
			job.ForceOperation = true
		}
	}
	for _, key := range o.SpecificJobs {
		if job, ok := cfg.SyncJobs[key]; ok {
			job.Active = true
		}
	}
}

// EffectiveDryRun implements the OR-semantics Open Question resolution:
// either the job's or the global dry_run flag being true makes the run dry.
func (c *Config) EffectiveDryRun(job *SyncJobConfig) bool {
	return c.DryRun || job.DryRun
}

// JobShutdownTimeout bounds how long the supervisor waits for an in-flight sync
// during shutdown before reporting a forced shutdown (spec.md §5, §7).
const JobShutdownTimeout = 60 * time.Second
