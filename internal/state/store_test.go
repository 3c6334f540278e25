package state

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisyncd/bisyncd/internal/corelog"
)

func testLogger() corelog.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return &corelog.LogrusAdapter{Logger: l}
}

func TestStoreLoadToleratesMissingFiles(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), testLogger())
	s.Load()

	job := s.GetJob("jobA")
	assert.Equal(t, StatusNone, job.SyncStatus)
	assert.Equal(t, StatusNone, job.ResyncStatus)
	assert.Nil(t, job.LastSync)
}

func TestStoreUpdateJobPartialUpdate(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), testLogger())
	s.Load()

	completed := StatusCompleted
	now := time.Now().UTC().Truncate(time.Second)
	s.UpdateJob("jobA", JobStateUpdate{SyncStatus: &completed, LastSync: &now})

	job := s.GetJob("jobA")
	assert.Equal(t, StatusCompleted, job.SyncStatus)
	assert.Equal(t, StatusNone, job.ResyncStatus)
	require.NotNil(t, job.LastSync)
	assert.True(t, job.LastSync.Equal(now))
}

func TestStorePersistRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, testLogger())
	s.Load()

	completed := StatusCompleted
	now := time.Now().UTC().Truncate(time.Second)
	s.UpdateJob("jobA", JobStateUpdate{SyncStatus: &completed, ResyncStatus: &completed, LastSync: &now})
	s.SetError("/data/a", ErrorRecord{SyncType: "bisync", ErrorCode: 2, Message: "boom", Timestamp: now})

	require.NoError(t, s.Persist())

	reloaded := New(dir, testLogger())
	reloaded.Load()

	job := reloaded.GetJob("jobA")
	assert.Equal(t, StatusCompleted, job.SyncStatus)
	assert.Equal(t, StatusCompleted, job.ResyncStatus)
	require.NotNil(t, job.LastSync)
	assert.True(t, job.LastSync.Equal(now))

	errs := reloaded.Errors()
	require.Contains(t, errs, "/data/a")
	assert.Equal(t, "boom", errs["/data/a"].Message)
}

func TestStoreClearErrorRemovesRecord(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), testLogger())
	s.Load()

	s.SetError("/data/a", ErrorRecord{Message: "boom"})
	require.Contains(t, s.Errors(), "/data/a")

	s.ClearError("/data/a")
	assert.NotContains(t, s.Errors(), "/data/a")
}

func TestStoreLoadToleratesCorruptJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/sync_state.json", []byte("{not valid json"), 0o644))

	s := New(dir, testLogger())
	s.Load()

	job := s.GetJob("jobA")
	assert.Equal(t, StatusNone, job.SyncStatus)
}
