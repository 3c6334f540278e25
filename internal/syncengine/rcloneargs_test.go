package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bisyncd/bisyncd/internal/config"
)

func TestBuildRcloneArgsPrecedenceJobOverridesGlobal(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		RcloneOptions: config.OptionMap{"transfers": "4"},
		BisyncOptions: config.OptionMap{"transfers": "8"},
	}
	job := &config.SyncJobConfig{
		RcloneOptions: config.OptionMap{"transfers": "16"},
	}

	args := buildRcloneArgs(cfg, job, opBisync)
	assert.Contains(t, args, "16")
	assert.NotContains(t, args, "4")
	assert.NotContains(t, args, "8")
}

func TestBuildRcloneArgsAppendsDryRunAndForce(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{DryRun: true}
	job := &config.SyncJobConfig{ForceOperation: true}

	args := buildRcloneArgs(cfg, job, opBisync)
	assert.Contains(t, args, "--dry-run")
	assert.Contains(t, args, "--force")
}

func TestBuildRcloneArgsOmitsExcludeFromWhenFileAbsent(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{ExclusionRulesFile: "/does/not/exist"}
	job := &config.SyncJobConfig{}

	args := buildRcloneArgs(cfg, job, opBisync)
	assert.NotContains(t, args, "--exclude-from")
}

func TestBuildRcloneArgsIncludesLogFileWhenRedirecting(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{RedirectRcloneLogOutput: true, LogFilePath: "/tmp/rclone.log"}
	job := &config.SyncJobConfig{}

	args := buildRcloneArgs(cfg, job, opBisync)
	assert.Contains(t, args, "--log-file")
	assert.Contains(t, args, "/tmp/rclone.log")
}
