//go:build linux || darwin

package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRejectsSecondLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	require.Error(t, err, "a live holder's lock must not be reclaimed")
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.lock")

	// Simulate a lockfile left behind by a process that no longer
	// exists: a pid file with no corresponding flock held.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID(t))), 0600))

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()
}

func TestReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// deadPID returns a pid that is very unlikely to be alive: the
// maximum typical pid plus one, which os.FindProcess/kill(pid,0) will
// report as not found on every platform this package builds for.
func deadPID(t *testing.T) int {
	t.Helper()
	return 1 << 22
}
