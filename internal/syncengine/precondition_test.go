package syncengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLocalDirectoryCreatesMissingDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	target := filepath.Join(base, "nested", "dir")
	require.NoError(t, ensureLocalDirectory(target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestScanForHashWarningDetectsSubstringAfterOffset(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rclone.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o644))

	offset, warned, err := scanForHashWarning(path, 0)
	require.NoError(t, err)
	assert.False(t, warned)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("WARNING: hash unexpectedly blank despite Fs support\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	newOffset, warned, err := scanForHashWarning(path, offset)
	require.NoError(t, err)
	assert.True(t, warned)
	assert.Greater(t, newOffset, offset)
}

func TestScanForHashWarningNoNewDataReturnsFalse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rclone.log")
	require.NoError(t, os.WriteFile(path, []byte("nothing interesting"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)

	_, warned, err := scanForHashWarning(path, info.Size())
	require.NoError(t, err)
	assert.False(t, warned)
}

func TestScanForHashWarningMissingFileIsNotError(t *testing.T) {
	t.Parallel()

	_, warned, err := scanForHashWarning(filepath.Join(t.TempDir(), "nope.log"), 0)
	require.NoError(t, err)
	assert.False(t, warned)
}
