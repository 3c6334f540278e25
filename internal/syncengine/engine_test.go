package syncengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/state"
)

func testLogger() corelog.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return &corelog.LogrusAdapter{Logger: l}
}

func testConfig(t *testing.T) (*config.Config, *config.SyncJobConfig) {
	t.Helper()
	job := &config.SyncJobConfig{
		Local:        "a",
		RcloneRemote: "myremote",
		Remote:       "a",
		Schedule:     "* * * * *",
		Active:       true,
	}
	cfg := &config.Config{
		LocalBasePath:      t.TempDir(),
		MaxCPUUsagePercent: 100,
		SyncJobs:           map[string]*config.SyncJobConfig{"jobA": job},
	}
	return cfg, job
}

func withFakeProbes(t *testing.T, local, remote bool) {
	t.Helper()
	origLocal, origRemote := checkLocalProbe, checkRemoteProbe
	checkLocalProbe = func(string) bool { return local }
	checkRemoteProbe = func(string) bool { return remote }
	t.Cleanup(func() {
		checkLocalProbe = origLocal
		checkRemoteProbe = origRemote
	})
}

func withFakeRclone(t *testing.T, exitCodes ...int) *[]string {
	t.Helper()
	orig := runRclone
	var calls []string
	i := 0
	runRclone = func(args []string, maxCPU int) (runResult, error) {
		calls = append(calls, args[0])
		code := 0
		if i < len(exitCodes) {
			code = exitCodes[i]
		}
		i++
		return runResult{ExitCode: code}, nil
	}
	t.Cleanup(func() { runRclone = orig })
	return &calls
}

func TestProcessSkipsWhenProbeFileMissing(t *testing.T) {
	cfg, _ := testConfig(t)
	withFakeProbes(t, false, true)
	store := state.New(t.TempDir(), testLogger())
	store.Load()

	eng := New(testLogger(), store, nil)
	err := eng.Process(cfg, "jobA", false)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
}

func TestProcessRunsResyncThenBisyncOnFirstRun(t *testing.T) {
	cfg, _ := testConfig(t)
	withFakeProbes(t, true, true)
	calls := withFakeRclone(t, 0, 0)

	store := state.New(t.TempDir(), testLogger())
	store.Load()

	eng := New(testLogger(), store, nil)
	require.NoError(t, eng.Process(cfg, "jobA", false))

	assert.Equal(t, []string{"bisync", "bisync"}, *calls)

	job := store.GetJob("jobA")
	assert.Equal(t, state.StatusCompleted, job.ResyncStatus)
	assert.Equal(t, state.StatusCompleted, job.SyncStatus)
	require.NotNil(t, job.LastSync)
}

func TestProcessSkipsBisyncWhenResyncFails(t *testing.T) {
	cfg, _ := testConfig(t)
	withFakeProbes(t, true, true)
	calls := withFakeRclone(t, 2)

	store := state.New(t.TempDir(), testLogger())
	store.Load()

	eng := New(testLogger(), store, nil)
	require.NoError(t, eng.Process(cfg, "jobA", false))

	assert.Equal(t, []string{"bisync"}, *calls)
	job := store.GetJob("jobA")
	assert.Equal(t, state.StatusFailed, job.ResyncStatus)
	assert.Equal(t, state.StatusNone, job.SyncStatus)
}

func TestProcessRefusesStickyFailedResyncWithoutForce(t *testing.T) {
	cfg, job := testConfig(t)
	withFakeProbes(t, true, true)
	calls := withFakeRclone(t)

	store := state.New(t.TempDir(), testLogger())
	store.Load()
	failed := state.StatusFailed
	store.UpdateJob("jobA", state.JobStateUpdate{ResyncStatus: &failed})

	eng := New(testLogger(), store, nil)
	err := eng.Process(cfg, "jobA", false)
	assert.ErrorIs(t, err, ErrStickyFailed)
	assert.Empty(t, *calls)

	job.ForceResync = true
	calls2 := withFakeRclone(t, 0, 0)
	require.NoError(t, eng.Process(cfg, "jobA", false))
	assert.Equal(t, []string{"bisync", "bisync"}, *calls2)
}

func TestProcessSkipsResyncWhenAlreadyCompleted(t *testing.T) {
	cfg, _ := testConfig(t)
	withFakeProbes(t, true, true)
	calls := withFakeRclone(t, 0)

	store := state.New(t.TempDir(), testLogger())
	store.Load()
	completed := state.StatusCompleted
	store.UpdateJob("jobA", state.JobStateUpdate{ResyncStatus: &completed})

	eng := New(testLogger(), store, nil)
	require.NoError(t, eng.Process(cfg, "jobA", false))

	assert.Equal(t, []string{"bisync"}, *calls)
	job := store.GetJob("jobA")
	assert.Equal(t, state.StatusCompleted, job.SyncStatus)
}

func TestProcessIgnoresPreExistingHashWarningOnFirstScan(t *testing.T) {
	cfg, _ := testConfig(t)
	logPath := filepath.Join(t.TempDir(), "rclone.log")
	require.NoError(t, os.WriteFile(logPath, []byte(hashWarningSubstring+"\n"), 0o644))
	cfg.LogFilePath = logPath

	withFakeProbes(t, true, true)
	withFakeRclone(t, 0, 0)

	store := state.New(t.TempDir(), testLogger())
	store.Load()

	eng := New(testLogger(), store, nil)
	require.NoError(t, eng.Process(cfg, "jobA", false))

	assert.Empty(t, eng.HashWarning("jobA"))
}

func TestProcessDryRunDoesNotPersistState(t *testing.T) {
	cfg, job := testConfig(t)
	cfg.DryRun = true
	job.DryRun = true
	withFakeProbes(t, true, true)
	withFakeRclone(t, 0, 0)

	store := state.New(t.TempDir(), testLogger())
	store.Load()

	eng := New(testLogger(), store, nil)
	require.NoError(t, eng.Process(cfg, "jobA", false))

	job2 := store.GetJob("jobA")
	assert.Equal(t, state.StatusNone, job2.SyncStatus)
	assert.Equal(t, state.StatusNone, job2.ResyncStatus)
}
