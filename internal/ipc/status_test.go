package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/state"
)

type fakeSource struct {
	running       bool
	shuttingDown  bool
	inLimbo       bool
	configInvalid bool
	errMsg        string
	changed       bool
	configPath    string
	cfg           *config.Config
	store         *state.Store
	currentKey    string
	queued        []string
	jobRunning    bool
	hashWarnings  map[string]string
}

func (f *fakeSource) Running() bool              { return f.running }
func (f *fakeSource) ShuttingDown() bool         { return f.shuttingDown }
func (f *fakeSource) InLimbo() bool              { return f.inLimbo }
func (f *fakeSource) ConfigInvalid() bool        { return f.configInvalid }
func (f *fakeSource) ConfigErrorMessage() string { return f.errMsg }
func (f *fakeSource) ConfigChangedOnDisk() bool  { return f.changed }
func (f *fakeSource) ConfigFilePath() string     { return f.configPath }
func (f *fakeSource) CurrentConfig() *config.Config { return f.cfg }
func (f *fakeSource) Store() *state.Store        { return f.store }
func (f *fakeSource) QueueSnapshot() (string, []string, bool) {
	return f.currentKey, f.queued, f.jobRunning
}
func (f *fakeSource) HashWarning(jobKey string) string { return f.hashWarnings[jobKey] }

func testStateLogger() corelog.Logger { return testLogger() }

func TestBuildStatusReportInLimboOmitsSyncJobs(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		running:    true,
		inLimbo:    true,
		errMsg:     "local_base_path does not exist",
		configPath: "/etc/bisyncd.yaml",
	}

	report := BuildStatusReport(42, src)
	assert.Equal(t, 42, report.PID)
	assert.True(t, report.InLimbo)
	require.NotNil(t, report.ConfigErrorMessage)
	assert.Equal(t, "local_base_path does not exist", *report.ConfigErrorMessage)
	assert.Empty(t, report.SyncJobs)
}

func TestBuildStatusReportIncludesActiveJobsOnly(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir(), testStateLogger())
	store.Load()
	completed := state.StatusCompleted
	store.UpdateJob("jobA", state.JobStateUpdate{SyncStatus: &completed, ResyncStatus: &completed})

	cfg := &config.Config{
		SyncJobs: map[string]*config.SyncJobConfig{
			"jobA": {Local: "a", RcloneRemote: "r", Remote: "a", Schedule: "* * * * *", Active: true},
			"jobB": {Local: "b", RcloneRemote: "r", Remote: "b", Schedule: "* * * * *", Active: false},
		},
	}

	src := &fakeSource{
		running:      true,
		cfg:          cfg,
		store:        store,
		currentKey:   "jobA",
		queued:       []string{"jobB"},
		hashWarnings: map[string]string{},
	}

	report := BuildStatusReport(1, src)
	require.Contains(t, report.SyncJobs, "jobA")
	assert.NotContains(t, report.SyncJobs, "jobB")
	assert.Equal(t, state.StatusCompleted, report.SyncJobs["jobA"].SyncStatus)
	require.NotNil(t, report.CurrentlySyncing)
	assert.Equal(t, "jobA", *report.CurrentlySyncing)
	assert.Equal(t, []string{"jobB"}, report.QueuedPaths)
}
