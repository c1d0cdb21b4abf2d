package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/dinghy/internal/kernelspec"
)

func TestInstallCmd(t *testing.T) {
	prefix := t.TempDir()

	_, err := executeCmd(t, "install", "--prefix", prefix, "--name", "dinghy-test")
	require.NoError(t, err)

	specPath := filepath.Join(prefix, "share", "jupyter", "kernels", "dinghy-test", "kernel.json")
	data, err := os.ReadFile(specPath)
	require.NoError(t, err)

	var spec kernelspec.Spec
	require.NoError(t, json.Unmarshal(data, &spec))

	t.Run("argv launches this binary", func(t *testing.T) {
		require.NotEmpty(t, spec.Argv)
		assert.True(t, filepath.IsAbs(spec.Argv[0]), spec.Argv[0])
		assert.Contains(t, spec.Argv, "run")
		assert.Contains(t, spec.Argv, "{connection_file}")
	})

	t.Run("interrupts go over the wire", func(t *testing.T) {
		assert.Equal(t, "message", spec.InterruptMode)
	})

	t.Run("uninstall removes it", func(t *testing.T) {
		_, err := executeCmd(t, "uninstall", "--prefix", prefix, "--name", "dinghy-test")
		require.NoError(t, err)
		assert.NoFileExists(t, specPath)
	})
}
