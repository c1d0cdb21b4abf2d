package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config and cache lookups at temp directories so
// tests never read the developer's real files.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	for _, key := range []string{"DINGHY_PORT", "DINGHY_BAUD", "MP_LOCAL_PATH", "MP_REMOTE_PATH", "DINGHY_SHELL", "DINGHY_DATA_DIR", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return tmp
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Port)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, "./local", cfg.LocalPath)
	assert.Equal(t, "/", cfg.RemotePath)
	assert.Equal(t, "/bin/bash", cfg.Shell)
}

func TestLoad_ConfigFile(t *testing.T) {
	tmp := isolate(t)

	dir := filepath.Join(tmp, "config", "dinghy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: /dev/ttyACM3\nbaud: 9600\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM3", cfg.Port)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, "/", cfg.RemotePath, "unset keys keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmp := isolate(t)

	dir := filepath.Join(tmp, "config", "dinghy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: /dev/from-file\n"), 0o644))
	t.Setenv("DINGHY_PORT", "/dev/from-env")
	t.Setenv("DINGHY_BAUD", "460800")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/from-env", cfg.Port)
	assert.Equal(t, 460800, cfg.Baud)
}

func TestLoad_BadEnvIntFallsBack(t *testing.T) {
	isolate(t)
	t.Setenv("DINGHY_BAUD", "fast")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaud, cfg.Baud)
}

func TestLoad_BadConfigFile(t *testing.T) {
	tmp := isolate(t)

	dir := filepath.Join(tmp, "config", "dinghy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: [broken"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestHistoryPath(t *testing.T) {
	t.Run("data dir override", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		cfg := &Config{DataDir: dir}

		path, err := cfg.HistoryPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "history.db"), path)
	})

	t.Run("defaults under cache dir", func(t *testing.T) {
		tmp := isolate(t)
		cfg := &Config{}

		path, err := cfg.HistoryPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmp, "cache", "dinghy", "history.db"), path)
		assert.DirExists(t, filepath.Dir(path))
	})
}

func TestEnvContext(t *testing.T) {
	isolate(t)
	t.Setenv("MY_TOKEN", "hunter2")

	cfg := &Config{Port: "/dev/ttyACM0", Baud: 115200, LocalPath: "./src", RemotePath: "/"}
	ctx := cfg.EnvContext()

	assert.Equal(t, "hunter2", ctx["MY_TOKEN"])
	assert.Equal(t, "/dev/ttyACM0", ctx["DINGHY_PORT"])
	assert.Equal(t, "115200", ctx["DINGHY_BAUD"])
	assert.Equal(t, "./src", ctx["MP_LOCAL_PATH"])
}
