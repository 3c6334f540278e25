// Package state implements the Sync State Store (C2): durable per-job
// sync/resync status and sticky error records, persisted as two JSON
// documents under the cache directory (spec.md §3, §4.2).
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bisyncd/bisyncd/internal/corelog"
)

// Status is one of the four sync/resync phase states spec.md §3 defines.
type Status string

const (
	StatusNone       Status = "NONE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// JobState is the persisted record for one job key.
type JobState struct {
	SyncStatus   Status     `json:"sync_status"`
	ResyncStatus Status     `json:"resync_status"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// JobStateUpdate carries only the fields an UpdateJob caller wants to
// change; nil fields are left untouched, matching spec.md §4.2's
// `UpdateJob(key, {sync_status?, resync_status?, last_sync?, next_run?})`.
type JobStateUpdate struct {
	SyncStatus   *Status
	ResyncStatus *Status
	LastSync     *time.Time
	NextRun      *time.Time
}

// ErrorRecord is one sticky entry in sync_errors.json, keyed by local path.
type ErrorRecord struct {
	SyncType  string    `json:"sync_type"`
	ErrorCode int       `json:"error_code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// persistedState is the on-disk shape of sync_state.json, matching
// original_source/config.py's save_sync_state/load_sync_state field names
// and spec.md §6's schema exactly.
type persistedState struct {
	SyncStatus     map[string]Status     `json:"sync_status"`
	ResyncStatus   map[string]Status     `json:"resync_status"`
	LastSyncTimes  map[string]time.Time  `json:"last_sync_times"`
	NextRunTimes   map[string]time.Time  `json:"next_run_times"`
}

// Store is the single owner of per-job sync state and sticky errors for
// the lifetime of the daemon. It is safe for concurrent use; the
// supervisor and worker goroutine both reach it under its internal mutex.
type Store struct {
	mu     sync.Mutex
	dir    string
	log    corelog.Logger
	jobs   map[string]*JobState
	errors map[string]ErrorRecord
}

// New binds a Store to cacheDir without reading anything from disk; call
// Load to populate it.
func New(cacheDir string, log corelog.Logger) *Store {
	return &Store{
		dir:    cacheDir,
		log:    log,
		jobs:   make(map[string]*JobState),
		errors: make(map[string]ErrorRecord),
	}
}

func (s *Store) statePath() string  { return filepath.Join(s.dir, "sync_state.json") }
func (s *Store) errorsPath() string { return filepath.Join(s.dir, "sync_errors.json") }

// Load populates the store from disk, tolerating a missing, empty, or
// corrupt file by resetting to an empty state and logging the condition
// (spec.md §4.2, §7 StateCorruption), never returning an error.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*JobState)
	if raw, err := os.ReadFile(s.statePath()); err == nil && len(raw) > 0 {
		var p persistedState
		if err := json.Unmarshal(raw, &p); err != nil {
			s.log.Errorf("sync_state.json is corrupt, initializing empty state: %v", err)
		} else {
			keys := make(map[string]struct{})
			for k := range p.SyncStatus {
				keys[k] = struct{}{}
			}
			for k := range p.ResyncStatus {
				keys[k] = struct{}{}
			}
			for k := range p.LastSyncTimes {
				keys[k] = struct{}{}
			}
			for k := range p.NextRunTimes {
				keys[k] = struct{}{}
			}
			for key := range keys {
				js := &JobState{SyncStatus: StatusNone, ResyncStatus: StatusNone}
				if v, ok := p.SyncStatus[key]; ok {
					js.SyncStatus = v
				}
				if v, ok := p.ResyncStatus[key]; ok {
					js.ResyncStatus = v
				}
				if v, ok := p.LastSyncTimes[key]; ok {
					t := v
					js.LastSync = &t
				}
				if v, ok := p.NextRunTimes[key]; ok {
					t := v
					js.NextRun = &t
				}
				s.jobs[key] = js
			}
		}
	} else {
		s.log.Debugf("sync_state.json is empty or missing, initializing empty state")
	}

	s.errors = make(map[string]ErrorRecord)
	if raw, err := os.ReadFile(s.errorsPath()); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.errors); err != nil {
			s.log.Errorf("sync_errors.json is corrupt, initializing empty errors: %v", err)
			s.errors = make(map[string]ErrorRecord)
		}
	}
}

// GetJob returns a copy of the current state for key, or a fresh
// NONE/NONE record if nothing has been recorded yet.
func (s *Store) GetJob(key string) JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[key]
	if !ok {
		return JobState{SyncStatus: StatusNone, ResyncStatus: StatusNone}
	}
	return *js
}

// UpdateJob applies a partial update to key's record, creating it if
// absent. It does not persist; call Persist explicitly once the caller's
// batch of changes is complete.
func (s *Store) UpdateJob(key string, u JobStateUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[key]
	if !ok {
		js = &JobState{SyncStatus: StatusNone, ResyncStatus: StatusNone}
		s.jobs[key] = js
	}
	if u.SyncStatus != nil {
		js.SyncStatus = *u.SyncStatus
	}
	if u.ResyncStatus != nil {
		js.ResyncStatus = *u.ResyncStatus
	}
	if u.LastSync != nil {
		js.LastSync = u.LastSync
	}
	if u.NextRun != nil {
		js.NextRun = u.NextRun
	}
}

// SetError records a sticky error for localPath, overwriting any prior one.
func (s *Store) SetError(localPath string, rec ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[localPath] = rec
}

// ClearError removes a sticky error, called on the next successful
// completion for the same local path (spec.md §4.6).
func (s *Store) ClearError(localPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, localPath)
}

// Errors returns a copy of the current sticky-error map, for STATUS
// rendering.
func (s *Store) Errors() map[string]ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ErrorRecord, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Persist writes both sync_state.json and sync_errors.json atomically
// (write-temp + rename), per spec.md §3's ownership rule.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := persistedState{
		SyncStatus:    make(map[string]Status, len(s.jobs)),
		ResyncStatus:  make(map[string]Status, len(s.jobs)),
		LastSyncTimes: make(map[string]time.Time, len(s.jobs)),
		NextRunTimes:  make(map[string]time.Time, len(s.jobs)),
	}
	for key, js := range s.jobs {
		p.SyncStatus[key] = js.SyncStatus
		p.ResyncStatus[key] = js.ResyncStatus
		if js.LastSync != nil {
			p.LastSyncTimes[key] = *js.LastSync
		}
		if js.NextRun != nil {
			p.NextRunTimes[key] = *js.NextRun
		}
	}

	if err := writeJSONAtomic(s.statePath(), p); err != nil {
		return fmt.Errorf("persisting sync_state.json: %w", err)
	}
	if err := writeJSONAtomic(s.errorsPath(), s.errors); err != nil {
		return fmt.Errorf("persisting sync_errors.json: %w", err)
	}
	return nil
}

// writeJSONAtomic marshals v and writes it to path via a temp file in the
// same directory followed by rename, so readers never observe a partial
// write (spec.md §3 "flush both JSON files atomically").
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
