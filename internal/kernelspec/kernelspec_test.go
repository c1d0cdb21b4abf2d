package kernelspec

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	spec := New("/usr/local/bin/dinghy", "MicroPython (dinghy)")

	assert.Equal(t, []string{"/usr/local/bin/dinghy", "run", "--connection-file", "{connection_file}"}, spec.Argv)
	assert.Equal(t, "micropython", spec.Language)
	assert.Equal(t, "message", spec.InterruptMode, "interrupts arrive as interrupt_request, not SIGINT")
}

func TestDataDir(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv("JUPYTER_DATA_DIR", "/custom/jupyter")
		dir, err := DataDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/jupyter", dir)
	})
}

func TestDir(t *testing.T) {
	t.Setenv("JUPYTER_DATA_DIR", "/data")

	t.Run("user data dir", func(t *testing.T) {
		dir, err := Dir("", "dinghy")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", "kernels", "dinghy"), dir)
	})

	t.Run("prefix layout", func(t *testing.T) {
		dir, err := Dir("/opt/venv", "dinghy-pico")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/opt/venv", "share", "jupyter", "kernels", "dinghy-pico"), dir)
	})
}

func TestInstallUninstall(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("JUPYTER_DATA_DIR", tmp)

	spec := New("/bin/dinghy", "MicroPython (dinghy)")
	dir, err := Install(spec, "", DefaultName)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "kernels", "dinghy"), dir)

	data, err := os.ReadFile(filepath.Join(dir, "kernel.json"))
	require.NoError(t, err)

	var got Spec
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, spec.Argv, got.Argv)
	assert.Equal(t, "MicroPython (dinghy)", got.DisplayName)

	t.Run("uninstall removes the directory", func(t *testing.T) {
		removed, err := Uninstall("", DefaultName)
		require.NoError(t, err)
		assert.Equal(t, dir, removed)
		assert.NoDirExists(t, dir)
	})

	t.Run("uninstalling a missing spec is fine", func(t *testing.T) {
		_, err := Uninstall("", "never-installed")
		assert.NoError(t, err)
	})
}
