package data

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonLock_Exclusive(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "state.json"))

	running, err := DaemonRunning(path)
	require.NoError(t, err)
	assert.False(t, running)

	lock, err := AcquireDaemonLock(path)
	require.NoError(t, err)

	running, err = DaemonRunning(path)
	require.NoError(t, err)
	assert.True(t, running)

	_, err = AcquireDaemonLock(path)
	require.ErrorIs(t, err, ErrDaemonRunning)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	running, err = DaemonRunning(path)
	require.NoError(t, err)
	assert.False(t, running)

	again, err := AcquireDaemonLock(path)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestDaemonRunning_MissingDirectory(t *testing.T) {
	running, err := DaemonRunning(filepath.Join(t.TempDir(), "absent", "state.json.lock"))
	require.NoError(t, err)
	assert.False(t, running)
}
