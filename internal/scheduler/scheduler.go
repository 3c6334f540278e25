package scheduler

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/state"
)

// Scheduler owns a min-heap of Task plus a key->Task index for O(log n)
// replacement, per spec.md §4.4's scheduler invariants.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	index   map[string]*Task
	nextSeq int
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{index: make(map[string]*Task)}
}

// next computes the next fire time after `after` for a cron expression,
// the one place robfig/cron/v3 is used (per SPEC_FULL.md §10): only its
// Next(t) evaluation, never its own goroutine-driven Cron runner, since
// the spec requires the heap's peek/pop/reschedule to be driven by the
// supervisor's own loop.
func next(schedule string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cron expression %q: %w", schedule, err)
	}
	return sched.Next(after), nil
}

// Schedule replaces any existing entry for key with one task at when,
// satisfying invariant (ii): "rescheduling replaces the existing task
// atomically". store may be nil (tests that don't care about persisted
// state); when non-nil, next_run is recorded so STATUS and sync_state.json
// reflect it, mirroring scheduler.py's schedule_task updating
// sync_state.update_job_state(path_key, next_run=scheduled_time).
func (s *Scheduler) Schedule(key string, when time.Time, store *state.Store) {
	s.mu.Lock()
	s.scheduleLocked(key, when)
	s.mu.Unlock()
	if store != nil {
		store.UpdateJob(key, state.JobStateUpdate{NextRun: &when})
	}
}

func (s *Scheduler) scheduleLocked(key string, when time.Time) {
	if existing, ok := s.index[key]; ok {
		heap.Remove(&s.tasks, existing.index)
		delete(s.index, key)
	}
	task := &Task{ScheduledTime: when, JobKey: key, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.tasks, task)
	s.index[key] = task
}

// Remove drops key's task, if any, without replacing it. Used when a job
// is deactivated by a reload.
func (s *Scheduler) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.index[key]; ok {
		heap.Remove(&s.tasks, existing.index)
		delete(s.index, key)
	}
}

// Peek returns the earliest task without removing it.
func (s *Scheduler) Peek() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return Task{}, false
	}
	return *s.tasks[0], true
}

// Pop removes and returns the earliest task.
func (s *Scheduler) Pop() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return Task{}, false
	}
	task := heap.Pop(&s.tasks).(*Task)
	delete(s.index, task.JobKey)
	return *task, true
}

// Clear empties the heap, used on config reload (spec.md §4.4).
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = s.tasks[:0]
	s.index = make(map[string]*Task)
}

// Len reports the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// ScheduleAll computes each active job's next run and schedules it,
// first running missed-job catch-up if the config enables it. Per
// spec.md §9's Open Question resolution, a job with overdue cron slots
// gets exactly one immediate catch-up task, not one task per missed
// slot — the heap never holds more than one entry per key regardless.
func (s *Scheduler) ScheduleAll(cfg *config.Config, store *state.Store, now time.Time) error {
	for key, job := range cfg.SyncJobs {
		if !job.Active {
			s.Remove(key)
			continue
		}

		if cfg.RunMissedJobs {
			if last := store.GetJob(key).LastSync; last != nil {
				scheduledNext, err := next(job.Schedule, *last)
				if err != nil {
					return err
				}
				if scheduledNext.Before(now) {
					s.Schedule(key, scheduledNext, store)
					continue
				}
			} else {
				s.Schedule(key, now, store)
				continue
			}
		}

		when, err := next(job.Schedule, now)
		if err != nil {
			return err
		}
		s.Schedule(key, when, store)
	}
	return nil
}

// Reschedule computes key's next fire time from `after` (conventionally
// "now" right after the job finished executing, per spec.md §5's ordering
// guarantee that a late-finishing job never lands in the past) and
// schedules it, persisting the new next_run via store.
func (s *Scheduler) Reschedule(schedule, key string, after time.Time, store *state.Store) error {
	when, err := next(schedule, after)
	if err != nil {
		return err
	}
	s.Schedule(key, when, store)
	return nil
}
