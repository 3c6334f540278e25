package ipc

import (
	"time"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/state"
)

// JobStatus is one entry of StatusReport.SyncJobs, matching spec.md §6's
// STATUS response schema exactly.
type JobStatus struct {
	Local         string     `json:"local"`
	RcloneRemote  string     `json:"rclone_remote"`
	Remote        string     `json:"remote"`
	Schedule      string     `json:"schedule"`
	Active        bool       `json:"active"`
	DryRun        bool       `json:"dry_run"`
	LastSync      *time.Time `json:"last_sync"`
	NextRun       *time.Time `json:"next_run"`
	SyncStatus    state.Status `json:"sync_status"`
	ResyncStatus  state.Status `json:"resync_status"`
	HashWarnings  string     `json:"hash_warnings,omitempty"`
}

// StatusReport is the full JSON document the STATUS command returns,
// grounded on original_source/status_server.py's generate_status_report.
type StatusReport struct {
	PID                 int                           `json:"pid"`
	Running              bool                          `json:"running"`
	ShuttingDown         bool                          `json:"shutting_down"`
	InLimbo              bool                          `json:"in_limbo"`
	ConfigInvalid        bool                          `json:"config_invalid"`
	ConfigErrorMessage   *string                       `json:"config_error_message"`
	CurrentlySyncing     *string                       `json:"currently_syncing"`
	QueuedPaths          []string                      `json:"queued_paths"`
	ConfigChangedOnDisk  bool                          `json:"config_changed_on_disk"`
	ConfigFileLocation   string                        `json:"config_file_location"`
	LogFileLocation      *string                       `json:"log_file_location"`
	SyncErrors           map[string]state.ErrorRecord  `json:"sync_errors"`
	SyncJobs             map[string]JobStatus          `json:"sync_jobs"`
}

// StatusSource is the narrow surface StatusReport-building needs from the
// supervisor, scheduler, queue and engine, so this package never imports
// the daemon package itself (it is imported BY daemon).
type StatusSource interface {
	Running() bool
	ShuttingDown() bool
	InLimbo() bool
	ConfigInvalid() bool
	ConfigErrorMessage() string
	ConfigChangedOnDisk() bool
	ConfigFilePath() string
	CurrentConfig() *config.Config // nil while in limbo
	Store() *state.Store
	QueueSnapshot() (currentKey string, queued []string, running bool)
	HashWarning(jobKey string) string
}

// BuildStatusReport assembles the STATUS response from the live
// supervisor state, holding no lock itself: callers are expected to
// gather a consistent snapshot via StatusSource's own synchronization
// (spec.md §5's "STATUS observes a consistent snapshot" guarantee lives
// in the daemon package's mutex, not here).
func BuildStatusReport(pid int, src StatusSource) StatusReport {
	currentKey, queued, _ := src.QueueSnapshot()

	report := StatusReport{
		PID:                 pid,
		Running:             src.Running(),
		ShuttingDown:        src.ShuttingDown(),
		InLimbo:             src.InLimbo(),
		ConfigInvalid:       src.ConfigInvalid(),
		QueuedPaths:         queued,
		ConfigChangedOnDisk: src.ConfigChangedOnDisk(),
		ConfigFileLocation:  src.ConfigFilePath(),
		SyncJobs:            make(map[string]JobStatus),
	}

	if msg := src.ConfigErrorMessage(); msg != "" {
		report.ConfigErrorMessage = &msg
	}
	if currentKey != "" {
		report.CurrentlySyncing = &currentKey
	}

	cfg := src.CurrentConfig()
	if cfg != nil {
		if cfg.LogFilePath != "" {
			lf := cfg.LogFilePath
			report.LogFileLocation = &lf
		}
	}

	if cfg != nil && !src.InLimbo() && !src.ConfigInvalid() {
		store := src.Store()
		report.SyncErrors = store.Errors()
		for key, job := range cfg.SyncJobs {
			if !job.Active {
				continue
			}
			js := store.GetJob(key)
			report.SyncJobs[key] = JobStatus{
				Local:        job.Local,
				RcloneRemote: job.RcloneRemote,
				Remote:       job.Remote,
				Schedule:     job.Schedule,
				Active:       job.Active,
				DryRun:       cfg.EffectiveDryRun(job),
				LastSync:     js.LastSync,
				NextRun:      js.NextRun,
				SyncStatus:   js.SyncStatus,
				ResyncStatus: js.ResyncStatus,
				HashWarnings: src.HashWarning(key),
			}
		}
	}

	return report
}
