package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinaryAvailable(t *testing.T) {
	assert.True(t, IsBinaryAvailable("sh"))
	assert.False(t, IsBinaryAvailable("definitely-not-a-real-binary-xyz"))
}

func TestCheckOptionalBinaries(t *testing.T) {
	t.Run("empty PATH misses everything", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())

		missing := CheckOptionalBinaries()
		require.Len(t, missing, len(optionalBinaries))
		assert.Equal(t, "mpremote", missing[0].Name)
		assert.Contains(t, missing[0].InstallHint, "pip install mpremote")
	})

	t.Run("present binaries are not reported", func(t *testing.T) {
		dir := t.TempDir()
		for _, bin := range optionalBinaries {
			path := filepath.Join(dir, bin.Name)
			require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
		}
		t.Setenv("PATH", dir)

		assert.Empty(t, CheckOptionalBinaries())
	})
}

func TestCheckAll(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	warnings, errors := CheckAll()
	assert.Empty(t, errors, "missing helpers never block the kernel")
	assert.Len(t, warnings, len(optionalBinaries))
	for _, w := range warnings {
		assert.Contains(t, w, ": ")
	}
}
