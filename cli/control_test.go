package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommandReportsNotRunningWithoutError(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cmd := &StatusCommand{Logger: notifyTestLogger()}
	require.NoError(t, cmd.Execute(nil))
}

func TestStopCommandReportsNotRunningWithoutError(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cmd := &StopCommand{Logger: notifyTestLogger()}
	require.NoError(t, cmd.Execute(nil))
}

func TestReloadCommandReportsNotRunningWithoutError(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cmd := &ReloadCommand{Logger: notifyTestLogger()}
	require.NoError(t, cmd.Execute(nil))
}

func TestAddSyncCommandErrorsWhenDaemonNotRunning(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cmd := &AddSyncCommand{Logger: notifyTestLogger()}
	cmd.Args.Jobs = []string{"jobA"}
	err := cmd.Execute(nil)
	assert.Error(t, err)
}
