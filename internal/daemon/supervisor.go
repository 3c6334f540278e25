// Package daemon implements the Daemon Supervisor (C8): startup sequence,
// the 1 s-cadence main loop, signal-driven graceful shutdown, and the
// glue between every other component. Grounded on
// original_source/daemon_functions.py's daemon_main and on the teacher's
// signal-handling idiom in core/shutdown.go, simplified to the spec's
// exact shutdown sequence rather than a generic hook registry.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/ipc"
	"github.com/bisyncd/bisyncd/internal/lock"
	"github.com/bisyncd/bisyncd/internal/queue"
	"github.com/bisyncd/bisyncd/internal/scheduler"
	"github.com/bisyncd/bisyncd/internal/state"
	"github.com/bisyncd/bisyncd/internal/syncengine"
)

// crashLogPath mirrors the Python original's fixed crash-log location.
const crashLogPath = "/tmp/rclone_bisync_manager_crash.log"

// tickInterval is the main loop's cadence, per spec.md §4.8.
const tickInterval = 1 * time.Second

// Options configures a Supervisor's startup.
type Options struct {
	ConfigPath string
	CacheDir   string
	LockPath   string
	Overrides  config.CLIOverrides
	Log        corelog.Logger
}

// Supervisor owns every other component for one daemon run.
type Supervisor struct {
	log       corelog.Logger
	loader    *config.Loader
	cacheDir  string
	lockPath  string
	overrides config.CLIOverrides

	store     *state.Store
	scheduler *scheduler.Scheduler
	queue     *queue.Queue
	engine    *syncengine.Engine
	ipcServer *ipc.Server

	mu                  sync.Mutex
	cfg                 *config.Config
	inLimbo             bool
	configInvalid       bool
	configErrorMessage  string
	running             bool
	shuttingDown        bool
	configChangedOnDisk bool

	workerDone chan struct{}
	workerCtx  context.Context
	cancelWork context.CancelFunc
}

// New builds a Supervisor. Components are wired but nothing runs yet.
func New(opts Options) *Supervisor {
	log := opts.Log
	store := state.New(opts.CacheDir, log)

	// No notifier until the config is loaded and SetNotifier is called
	// by the entry point; the engine treats a nil Notifier as a no-op.
	var notifier syncengine.Notifier

	sup := &Supervisor{
		log:       log,
		loader:    config.NewLoader(opts.ConfigPath),
		cacheDir:  opts.CacheDir,
		lockPath:  opts.LockPath,
		overrides: opts.Overrides,
		store:     store,
		scheduler: scheduler.New(),
		queue:     queue.New(256),
		running:   true,
		inLimbo:   true,
	}
	sup.engine = syncengine.New(log, store, notifier)
	sup.ipcServer = ipc.New(
		filepath.Join(opts.CacheDir, "status.sock"),
		filepath.Join(opts.CacheDir, "add_sync.sock"),
		ipc.Handlers{
			Status:  sup.buildStatusReport,
			Stop:    sup.requestStop,
			Reload:  sup.reload,
			AddSync: sup.addSync,
		},
		log,
	)
	return sup
}

var _ ipc.StatusSource = (*Supervisor)(nil)

// Run executes the full startup sequence, main loop, and graceful
// shutdown, blocking until the daemon has fully stopped.
func (s *Supervisor) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("daemon crashed unexpectedly: %v", r)
			s.log.Criticalf("%s", msg)
			_ = os.WriteFile(crashLogPath, []byte(msg), 0o644)
			err = fmt.Errorf("%s", msg)
		}
	}()

	l, lockErr := lock.Acquire(s.lockPath)
	if lockErr != nil {
		return fmt.Errorf("starting daemon: %w", lockErr)
	}
	defer l.Release()

	s.store.Load()

	socketsDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.logServeErr("status", s.ipcServer.ServeStatus(socketsDone)) }()
	go func() { defer wg.Done(); s.logServeErr("add-sync", s.ipcServer.ServeAddSync(socketsDone)) }()

	s.log.Noticef("daemon started in limbo state")
	s.attemptLoad(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.workerCtx, s.cancelWork = context.WithCancel(context.Background())
	s.workerDone = make(chan struct{})
	go s.runWorker()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

mainLoop:
	for {
		select {
		case sig := <-sigCh:
			s.log.Noticef("received %v, initiating graceful shutdown", sig)
			s.beginShutdown()
			break mainLoop
		case <-ticker.C:
			s.tick()
			if s.isShuttingDown() {
				break mainLoop
			}
		}
	}

	s.shutdown(socketsDone, &wg)
	return nil
}

func (s *Supervisor) logServeErr(name string, err error) {
	if err != nil {
		s.log.Errorf("ipc: %s listener stopped: %v", name, err)
	}
}

// attemptLoad runs C1.Load, transitioning out of limbo on success and
// performing the startup-only ScheduleAll/initial-enqueue sequence.
// initial controls whether RunInitialSyncOnStartup is honored (only on
// the very first load, never on a RELOAD).
func (s *Supervisor) attemptLoad(initial bool) error {
	cfg, err := s.loader.Load(s.overrides)
	if err != nil {
		s.mu.Lock()
		s.inLimbo = true
		s.configInvalid = true
		s.configErrorMessage = err.Error()
		s.mu.Unlock()
		s.log.Errorf("configuration error: %v", err)
		return err
	}

	if changed, ferr := CheckFilterChanged(cfg, s.cacheDir); ferr != nil {
		s.log.Warningf("checking exclusion file change: %v", ferr)
	} else if changed {
		s.log.Noticef("exclusion rules file changed, forcing resync on all jobs")
		ForceResyncAllJobs(cfg)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.inLimbo = false
	s.configInvalid = false
	s.configErrorMessage = ""
	s.configChangedOnDisk = false
	s.mu.Unlock()
	s.loader.ResetChanged()

	s.scheduler.Clear()
	if err := s.scheduler.ScheduleAll(cfg, s.store, time.Now()); err != nil {
		s.log.Errorf("scheduling jobs: %v", err)
	}

	if initial && cfg.RunInitialSyncOnStartup {
		for key, job := range cfg.SyncJobs {
			if job.Active {
				s.queue.Enqueue(key, false)
			}
		}
	}

	s.log.Noticef("configuration loaded and validated successfully, exiting limbo state")
	return nil
}

// tick runs one main-loop iteration: check for on-disk config changes,
// and (outside limbo) promote any due scheduled tasks into the queue.
func (s *Supervisor) tick() {
	if s.loader.CheckChanged() {
		s.mu.Lock()
		s.configChangedOnDisk = true
		s.mu.Unlock()
	}

	if s.isLimbo() {
		return
	}

	now := time.Now()
	for {
		task, ok := s.scheduler.Peek()
		if !ok || task.ScheduledTime.After(now) {
			return
		}
		task, _ = s.scheduler.Pop()
		s.queue.Enqueue(task.JobKey, false)

		cfg := s.currentConfig()
		if job, ok := cfg.SyncJobs[task.JobKey]; ok && job.Active {
			if err := s.scheduler.Reschedule(job.Schedule, task.JobKey, time.Now(), s.store); err != nil {
				s.log.Errorf("rescheduling %q: %v", task.JobKey, err)
			}
		}
	}
}

// runWorker is the single consumer of the job queue (spec.md §5's
// "Worker thread"); it is the only goroutine that ever invokes the sync
// engine.
func (s *Supervisor) runWorker() {
	defer close(s.workerDone)
	for {
		key, forceBisync, ok := s.queue.Take(s.workerCtx)
		if !ok {
			return
		}

		cfg := s.currentConfig()
		if cfg == nil {
			s.queue.Release()
			continue
		}

		if err := s.engine.Process(cfg, key, forceBisync); err != nil {
			s.log.Warningf("[sync %q] %v", key, err)
		}
		s.queue.Release()
	}
}

func (s *Supervisor) currentConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Supervisor) isLimbo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inLimbo
}

func (s *Supervisor) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Supervisor) beginShutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	s.queue.BeginShutdown()
}

// requestStop is the STOP handler: it records the shutdown request and
// lets the main loop notice it on its next tick, per spec.md §4.7.
func (s *Supervisor) requestStop() {
	s.beginShutdown()
}

// shutdown runs spec.md §4.8's graceful shutdown sequence: wait up to
// JobShutdownTimeout for the current sync, drain the queue, stop the
// worker and listeners, and release the lock (the lock itself is
// released by Run's defer).
func (s *Supervisor) shutdown(socketsDone chan struct{}, wg *sync.WaitGroup) {
	s.log.Noticef("daemon shutting down...")

	deadline := time.Now().Add(config.JobShutdownTimeout)
	for time.Now().Before(deadline) {
		if _, _, running := s.queue.Snapshot(); !running {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if _, _, running := s.queue.Snapshot(); running {
		s.log.Warningf("current sync did not finish within %v, forcing shutdown", config.JobShutdownTimeout)
	}

	drained := s.queue.Drain()
	if len(drained) > 0 {
		s.log.Noticef("cleared %d queued job(s) on shutdown", len(drained))
	}

	s.cancelWork()
	<-s.workerDone

	close(socketsDone)
	wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Noticef("daemon shutdown complete")
}

// reload is the RELOAD handler: re-validate the on-disk config and swap
// it in atomically on success, per spec.md §4.7. On failure the prior
// config remains in effect but the daemon enters limbo.
func (s *Supervisor) reload() error {
	err := s.attemptLoad(false)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

// addSync is the add-sync-socket handler.
func (s *Supervisor) addSync(jobKey string, forceBisync bool) error {
	cfg := s.currentConfig()
	if cfg == nil {
		return errors.New("daemon is in limbo, no configuration loaded")
	}
	if _, ok := cfg.SyncJobs[jobKey]; !ok {
		return fmt.Errorf("sync job %q not found in configuration", jobKey)
	}
	accepted, rejectedShuttingDown := s.queue.Enqueue(jobKey, forceBisync)
	if rejectedShuttingDown {
		return errors.New("daemon is shutting down, not accepting new work")
	}
	if !accepted {
		s.log.Debugf("[sync %q] already queued or running, add-sync request ignored", jobKey)
	}
	return nil
}

// --- ipc.StatusSource ---

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) ShuttingDown() bool { return s.isShuttingDown() }
func (s *Supervisor) InLimbo() bool      { return s.isLimbo() }

func (s *Supervisor) ConfigInvalid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configInvalid
}

func (s *Supervisor) ConfigErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configErrorMessage
}

func (s *Supervisor) ConfigChangedOnDisk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configChangedOnDisk
}

func (s *Supervisor) ConfigFilePath() string { return s.loader.Path() }

func (s *Supervisor) CurrentConfig() *config.Config { return s.currentConfig() }

func (s *Supervisor) Store() *state.Store { return s.store }

func (s *Supervisor) QueueSnapshot() (string, []string, bool) { return s.queue.Snapshot() }

func (s *Supervisor) HashWarning(jobKey string) string { return s.engine.HashWarning(jobKey) }

func (s *Supervisor) buildStatusReport() ipc.StatusReport {
	return ipc.BuildStatusReport(os.Getpid(), s)
}

// SetNotifier wires an operator-notification mailer into the sync
// engine, used by the CLI entry point once NotifyEmail is known.
func (s *Supervisor) SetNotifier(n syncengine.Notifier) {
	s.engine = syncengine.New(s.log, s.store, n)
}
