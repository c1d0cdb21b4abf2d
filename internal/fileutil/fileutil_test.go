package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PROJECT", "/srv/project")

	t.Run("tilde", func(t *testing.T) {
		assert.Equal(t, filepath.Join(home, "code"), ExpandPath("~/code"))
	})

	t.Run("bare tilde", func(t *testing.T) {
		assert.Equal(t, home, ExpandPath("~"))
	})

	t.Run("env var", func(t *testing.T) {
		assert.Equal(t, "/srv/project/src", ExpandPath("$PROJECT/src"))
	})

	t.Run("plain path untouched", func(t *testing.T) {
		assert.Equal(t, "/etc/hosts", ExpandPath("/etc/hosts"))
		assert.Equal(t, "relative/path", ExpandPath("relative/path"))
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "c.txt")
		require.NoError(t, WriteFile(path, []byte("data"), 0o644))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "data", string(got))
	})

	t.Run("overwrites existing content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, WriteFile(path, []byte("old old old"), 0o644))
		require.NoError(t, WriteFile(path, []byte("new"), 0o644))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))
	})
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	require.NoError(t, AppendFile(path, []byte("one\n"), 0o644))
	require.NoError(t, AppendFile(path, []byte("two\n"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))
}
