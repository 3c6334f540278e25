// Package syncengine implements the Sync Engine (C6): the per-job
// two-phase resync/bisync state machine, rclone invocation assembly, and
// exit-code interpretation (spec.md §4.6).
package syncengine

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/state"
)

// Notifier is the narrow surface the engine uses to tell an operator
// about a newly sticky-FAILED job, satisfied by internal/notify.Mailer.
// Kept as an interface so the engine has no direct SMTP dependency.
type Notifier interface {
	NotifyStickyFailure(jobKey, localPath, message string)
}

// noopNotifier is used when no notify_email block is configured.
type noopNotifier struct{}

func (noopNotifier) NotifyStickyFailure(string, string, string) {}

// Engine runs the two-phase sync state machine for one daemon instance,
// against the shared Sync State Store.
type Engine struct {
	log      corelog.Logger
	store    *state.Store
	notifier Notifier

	logOffsets map[string]int64 // per-job last-scanned log offset, for hash-warning scanning

	mu           sync.Mutex
	hashWarnings map[string]string // per-job last hash-warning message, for STATUS
}

// New builds an Engine. Pass a nil notifier to disable sticky-failure
// email notification.
func New(log corelog.Logger, store *state.Store, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		log:          log,
		store:        store,
		notifier:     notifier,
		logOffsets:   make(map[string]int64),
		hashWarnings: make(map[string]string),
	}
}

// HashWarning returns the last hash-warning message recorded for a job,
// if any, for STATUS rendering (spec.md §6 sync_jobs[key].hash_warnings).
func (e *Engine) HashWarning(jobKey string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hashWarnings[jobKey]
}

func (e *Engine) setHashWarning(jobKey, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if msg == "" {
		delete(e.hashWarnings, jobKey)
		return
	}
	e.hashWarnings[jobKey] = msg
}

// Process runs the full two-phase sync for jobKey per spec.md §4.6:
// precondition checks, sticky-FAILED short-circuit, resync-then-bisync,
// exit-code mapping, and state persistence. forceBisync mirrors the
// add-sync socket's optional flag and is applied as job.ForceOperation
// for just this run.
func (e *Engine) Process(cfg *config.Config, jobKey string, forceBisync bool) error {
	job, ok := cfg.SyncJobs[jobKey]
	if !ok {
		return fmt.Errorf("unknown job key %q", jobKey)
	}
	if forceBisync && !job.ForceOperation {
		job.ForceOperation = true
		defer func() { job.ForceOperation = false }()
	}

	localPath := filepath.Join(cfg.LocalBasePath, job.Local)
	remotePath := job.RcloneRemote + ":" + job.Remote

	e.log.Noticef("[sync %q] starting, dry_run=%v force_resync=%v force_operation=%v",
		jobKey, cfg.EffectiveDryRun(job), job.ForceResync, job.ForceOperation)

	if !checkLocalProbe(localPath) || !checkRemoteProbe(remotePath) {
		e.log.Warningf("[sync %q] missing %s probe file at local or remote root; place one at both roots to confirm the intended trees, skipping this run",
			jobKey, probeFileName)
		return ErrPreconditionMissing
	}

	if err := ensureLocalDirectory(localPath); err != nil {
		return err
	}

	current := e.store.GetJob(jobKey)

	needsResync := job.ForceResync || current.ResyncStatus == state.StatusNone || current.ResyncStatus == state.StatusInProgress
	if current.ResyncStatus == state.StatusFailed && !job.ForceResync {
		e.log.Errorf("[sync %q] resync is sticky-FAILED, refusing to run without force_resync", jobKey)
		e.store.SetError(localPath, state.ErrorRecord{
			SyncType:  "resync",
			ErrorCode: -1,
			Message:   "resync is sticky-FAILED; run with --resync or clear sync_state.json to retry",
			Timestamp: time.Now(),
		})
		return ErrStickyFailed
	}

	dryRun := cfg.EffectiveDryRun(job)
	var resyncStatus, syncStatus state.Status = current.ResyncStatus, current.SyncStatus

	if needsResync {
		resyncStatus = e.runResync(cfg, job, jobKey, remotePath, localPath, dryRun)
		if !dryRun {
			rs := resyncStatus
			e.store.UpdateJob(jobKey, state.JobStateUpdate{ResyncStatus: &rs})
		}
		if resyncStatus != state.StatusCompleted {
			e.log.Errorf("[sync %q] resync failed, bisync skipped until next attempt", jobKey)
			if !dryRun {
				if err := e.store.Persist(); err != nil {
					e.log.Errorf("[sync %q] persisting state: %v", jobKey, err)
				}
			}
			return nil
		}
		job.ForceResync = false
	}

	syncStatus = e.runBisync(cfg, job, jobKey, remotePath, localPath, dryRun)

	if !dryRun {
		now := time.Now()
		ss := syncStatus
		rs := resyncStatus
		e.store.UpdateJob(jobKey, state.JobStateUpdate{SyncStatus: &ss, ResyncStatus: &rs, LastSync: &now})
		if err := e.store.Persist(); err != nil {
			e.log.Errorf("[sync %q] persisting state: %v", jobKey, err)
		}
	}

	return nil
}

func (e *Engine) runResync(cfg *config.Config, job *config.SyncJobConfig, jobKey, remotePath, localPath string, dryRun bool) state.Status {
	args := append([]string{"bisync", remotePath, localPath, "--resync"}, buildRcloneArgs(cfg, job, opResync)...)
	result, err := runRclone(args, cfg.MaxCPUUsagePercent)
	if err != nil {
		e.log.Errorf("[sync %q] resync invocation error: %v", jobKey, err)
		return state.StatusFailed
	}
	return e.handleExitCode(result.ExitCode, jobKey, localPath, "resync", dryRun)
}

func (e *Engine) runBisync(cfg *config.Config, job *config.SyncJobConfig, jobKey, remotePath, localPath string, dryRun bool) state.Status {
	offset, seen := e.logOffsets[jobKey]
	if !seen && cfg.LogFilePath != "" {
		// First bisync for this job this run: start the scan from the log's
		// current size instead of 0, so a pre-existing log's stale warnings
		// never surface as if they came from this invocation.
		offset = logFileSize(cfg.LogFilePath)
	}

	args := append([]string{"bisync", remotePath, localPath}, buildRcloneArgs(cfg, job, opBisync)...)
	result, err := runRclone(args, cfg.MaxCPUUsagePercent)
	if err != nil {
		e.log.Errorf("[sync %q] bisync invocation error: %v", jobKey, err)
		return state.StatusFailed
	}

	if cfg.LogFilePath != "" {
		newOffset, warned, scanErr := scanForHashWarning(cfg.LogFilePath, offset)
		if scanErr == nil {
			e.logOffsets[jobKey] = newOffset
			if warned {
				msg := fmt.Sprintf("detected blank hash warnings for %s; this may indicate Live Photos or other special file types, consider --ignore-size if resync does not resolve it", jobKey)
				e.log.Warningf("[sync %q] %s", jobKey, msg)
				e.setHashWarning(jobKey, msg)
			} else {
				e.setHashWarning(jobKey, "")
			}
		}
	}

	return e.handleExitCode(result.ExitCode, jobKey, localPath, "bisync", dryRun)
}

// handleExitCode maps an rclone exit code to COMPLETED/FAILED per
// spec.md §4.6's table, grounded on original_source/sync.py's
// handle_rclone_exit_code, and updates the sticky error store.
func (e *Engine) handleExitCode(code int, jobKey, localPath, syncType string, dryRun bool) state.Status {
	message := exitCodeMessages[code]
	if message == "" {
		message = fmt.Sprintf("failed with an unknown error code %d, please check the logs", code)
	}

	if code == 0 || code == 9 {
		e.log.Noticef("[sync %q] %s %s for %s", jobKey, syncType, message, localPath)
		if !dryRun {
			e.store.ClearError(localPath)
		}
		return state.StatusCompleted
	}

	e.log.Errorf("[sync %q] %s %s for %s", jobKey, syncType, message, localPath)
	if !dryRun {
		rec := state.ErrorRecord{SyncType: syncType, ErrorCode: code, Message: message, Timestamp: time.Now()}
		e.store.SetError(localPath, rec)
		if syncType == "resync" {
			e.notifier.NotifyStickyFailure(jobKey, localPath, message)
		}
	}
	return state.StatusFailed
}

// exitCodeMessages is rclone bisync's canonical exit-code vocabulary,
// copied from original_source/sync.py's handle_rclone_exit_code.
var exitCodeMessages = map[int]string{
	0:  "completed successfully",
	1:  "non-critical error, a rerun may be successful",
	2:  "critically aborted, please check the logs for more information",
	3:  "directory not found, please check the logs for more information",
	4:  "file not found, please check the logs for more information",
	5:  "temporary error, more retries might fix this issue",
	6:  "less serious errors, please check the logs for more information",
	7:  "fatal error, please check the logs for more information",
	8:  "transfer limit exceeded, please check the logs for more information",
	9:  "successful but no files were transferred",
	10: "duration limit exceeded, please check the logs for more information",
}
