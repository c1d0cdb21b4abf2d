package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmp)
	return tmp
}

func TestForPort_Naming(t *testing.T) {
	isolate(t)

	l, err := ForPort("/dev/ttyACM0")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(l.Path(), "dev-ttyACM0.lock"), l.Path())
	assert.NotContains(t, filepath.Base(l.Path()), "/")
}

func TestPortLock_AcquireRelease(t *testing.T) {
	isolate(t)

	l, err := ForPort("/dev/ttyACM0")
	require.NoError(t, err)
	require.NoError(t, l.Acquire())

	t.Run("lock file holds our pid", func(t *testing.T) {
		data, err := os.ReadFile(l.Path())
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
	})

	t.Run("second holder is refused", func(t *testing.T) {
		other, err := ForPort("/dev/ttyACM0")
		require.NoError(t, err)
		err = other.Acquire()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "in use by another kernel")
	})

	t.Run("release frees the port", func(t *testing.T) {
		require.NoError(t, l.Release())
		assert.NoFileExists(t, l.Path())

		other, err := ForPort("/dev/ttyACM0")
		require.NoError(t, err)
		require.NoError(t, other.Acquire())
		require.NoError(t, other.Release())
	})
}

func TestPortLock_DifferentPortsCoexist(t *testing.T) {
	isolate(t)

	a, err := ForPort("/dev/ttyACM0")
	require.NoError(t, err)
	b, err := ForPort("/dev/ttyACM1")
	require.NoError(t, err)

	require.NoError(t, a.Acquire())
	assert.NoError(t, b.Acquire())

	a.Release()
	b.Release()
}

func TestRelease_WithoutAcquire(t *testing.T) {
	isolate(t)

	l, err := ForPort("/dev/ttyACM0")
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}

func TestStale(t *testing.T) {
	isolate(t)

	t.Run("missing directory is empty, not an error", func(t *testing.T) {
		stale, err := Stale()
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("held locks are not stale", func(t *testing.T) {
		l, err := ForPort("/dev/ttyACM0")
		require.NoError(t, err)
		require.NoError(t, l.Acquire())
		defer l.Release()

		stale, err := Stale()
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("leftover lock files are stale", func(t *testing.T) {
		dir, err := Dir()
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		leftover := filepath.Join(dir, "dev-ttyUSB9.lock")
		require.NoError(t, os.WriteFile(leftover, []byte("4242\n"), 0o644))

		stale, err := Stale()
		require.NoError(t, err)
		assert.Contains(t, stale, leftover)
	})
}
