package scheduler

import (
	"testing"
	"time"

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

func TestScheduleAndPeekOrdersByTime(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Now()
	s.Schedule("b", now.Add(2*time.Minute), nil)
	s.Schedule("a", now.Add(1*time.Minute), nil)

	task, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", task.JobKey)
}

func TestScheduleReplacesExistingEntryForKey(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Now()
	s.Schedule("a", now.Add(5*time.Minute), nil)
	s.Schedule("a", now.Add(1*time.Minute), nil)

	assert.Equal(t, 1, s.Len())
	task, ok := s.Peek()
	require.True(t, ok)
	assert.True(t, task.ScheduledTime.Equal(now.Add(1*time.Minute)))
}

func TestPopRemovesEarliestTask(t *testing.T) {
	t.Parallel()

	s := New()
	now := time.Now()
	s.Schedule("a", now.Add(2*time.Minute), nil)
	s.Schedule("b", now.Add(1*time.Minute), nil)

	task, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", task.JobKey)
	assert.Equal(t, 1, s.Len())

	_, stillThere := s.Peek()
	require.True(t, stillThere)
}

func TestClearEmptiesHeap(t *testing.T) {
	t.Parallel()

	s := New()
	s.Schedule("a", time.Now(), nil)
	s.Schedule("b", time.Now(), nil)
	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.Peek()
	assert.False(t, ok)
}

func TestScheduleAllSchedulesEachActiveJobOnce(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		SyncJobs: map[string]*config.SyncJobConfig{
			"active":   {Active: true, Schedule: "* * * * *"},
			"inactive": {Active: false, Schedule: "* * * * *"},
		},
	}
	store := state.New(t.TempDir(), testLogger())
	store.Load()

	s := New()
	require.NoError(t, s.ScheduleAll(cfg, store, time.Now()))

	assert.Equal(t, 1, s.Len())
	task, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, "active", task.JobKey)
}

func TestScheduleAllPersistsNextRunToStore(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		SyncJobs: map[string]*config.SyncJobConfig{
			"a": {Active: true, Schedule: "* * * * *"},
		},
	}
	store := state.New(t.TempDir(), testLogger())
	store.Load()

	s := New()
	now := time.Now()
	require.NoError(t, s.ScheduleAll(cfg, store, now))

	task, ok := s.Peek()
	require.True(t, ok)
	nextRun := store.GetJob("a").NextRun
	require.NotNil(t, nextRun)
	assert.True(t, nextRun.Equal(task.ScheduledTime))
}

func TestRescheduleUpdatesStoreNextRun(t *testing.T) {
	t.Parallel()

	store := state.New(t.TempDir(), testLogger())
	store.Load()

	s := New()
	after := time.Now()
	require.NoError(t, s.Reschedule("* * * * *", "a", after, store))

	task, ok := s.Peek()
	require.True(t, ok)
	nextRun := store.GetJob("a").NextRun
	require.NotNil(t, nextRun)
	assert.True(t, nextRun.Equal(task.ScheduledTime))
}

func TestScheduleAllCollapsesMissedRunsToOneTask(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		RunMissedJobs: true,
		SyncJobs: map[string]*config.SyncJobConfig{
			"a": {Active: true, Schedule: "* * * * *"},
		},
	}
	store := state.New(t.TempDir(), testLogger())
	store.Load()
	longAgo := time.Now().Add(-24 * time.Hour)
	completed := state.StatusCompleted
	store.UpdateJob("a", state.JobStateUpdate{SyncStatus: &completed, LastSync: &longAgo})

	s := New()
	require.NoError(t, s.ScheduleAll(cfg, store, time.Now()))

	assert.Equal(t, 1, s.Len())
}
