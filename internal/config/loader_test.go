package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFixture(t *testing.T, localBase string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
local_base_path: ` + localBase + `
max_cpu_usage_percent: 50
sync_jobs:
  jobA:
    local: a
    rclone_remote: myremote
    remote: a
    schedule: "* * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoaderLoadValidConfig(t *testing.T) {
	t.Parallel()

	localBase := t.TempDir()
	path := writeConfigFixture(t, localBase)

	loader := NewLoader(path)
	cfg, err := loader.Load(CLIOverrides{})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, localBase, cfg.LocalBasePath)
	assert.Equal(t, 50, cfg.MaxCPUUsagePercent)
	require.Contains(t, cfg.SyncJobs, "jobA")
	assert.True(t, cfg.SyncJobs["jobA"].Active)
}

func TestLoaderLoadKeepsExplicitFalsyValuesOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
local_base_path: ` + t.TempDir() + `
max_cpu_usage_percent: 0
run_initial_sync_on_startup: false
sync_jobs:
  jobA:
    local: a
    rclone_remote: myremote
    remote: a
    schedule: "* * * * *"
    active: false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := NewLoader(path).Load(CLIOverrides{})
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxCPUUsagePercent)
	assert.False(t, cfg.RunInitialSyncOnStartup)
	require.Contains(t, cfg.SyncJobs, "jobA")
	assert.False(t, cfg.SyncJobs["jobA"].Active)
}

func TestLoaderLoadRejectsUnknownTopLevelField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
local_base_path: ` + t.TempDir() + `
totally_unknown_field: 1
sync_jobs:
  jobA:
    local: a
    rclone_remote: myremote
    remote: a
    schedule: "* * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := NewLoader(path).Load(CLIOverrides{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoaderLoadRejectsMissingLocalBasePath(t *testing.T) {
	t.Parallel()

	path := writeConfigFixture(t, "/definitely/not/a/real/path")
	_, err := NewLoader(path).Load(CLIOverrides{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoaderLoadAppliesDryRunOverride(t *testing.T) {
	t.Parallel()

	path := writeConfigFixture(t, t.TempDir())
	cfg, err := NewLoader(path).Load(CLIOverrides{DryRun: true})
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
}

func TestLoaderLoadAppliesResyncOverride(t *testing.T) {
	t.Parallel()

	path := writeConfigFixture(t, t.TempDir())
	cfg, err := NewLoader(path).Load(CLIOverrides{ResyncJobs: []string{"jobA"}})
	require.NoError(t, err)
	assert.True(t, cfg.SyncJobs["jobA"].ForceResync)
}

func TestLoaderCheckChangedDetectsMtimeBump(t *testing.T) {
	t.Parallel()

	path := writeConfigFixture(t, t.TempDir())
	loader := NewLoader(path)
	_, err := loader.Load(CLIOverrides{})
	require.NoError(t, err)

	assert.False(t, loader.CheckChanged())

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.True(t, loader.CheckChanged())
	loader.ResetChanged()
	assert.False(t, loader.CheckChanged())
}

func TestConfigEffectiveDryRunIsOrSemantics(t *testing.T) {
	t.Parallel()

	cfg := &Config{DryRun: false}
	job := &SyncJobConfig{DryRun: true}
	assert.True(t, cfg.EffectiveDryRun(job))

	cfg.DryRun = true
	job.DryRun = false
	assert.True(t, cfg.EffectiveDryRun(job))
}
