package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDevBuild(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"dev", true},
		{"", true},
		{"0.2.0-dev", true},
		{"v0.2.0-dev.3", true},
		{"0.1.0", false},
		{"v1.2.3", false},
		{"1.0.0-rc.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDevBuild(tt.version))
		})
	}
}

func TestChangelogLines(t *testing.T) {
	t.Run("short changelog passes through", func(t *testing.T) {
		lines, omitted := ChangelogLines("- fix a\n- fix b", 10)
		assert.Equal(t, []string{"- fix a", "- fix b"}, lines)
		assert.Zero(t, omitted)
	})

	t.Run("long changelog is capped", func(t *testing.T) {
		lines, omitted := ChangelogLines("a\nb\nc\nd", 2)
		assert.Equal(t, []string{"a", "b"}, lines)
		assert.Equal(t, 2, omitted)
	})

	t.Run("empty changelog", func(t *testing.T) {
		lines, omitted := ChangelogLines("  \n", 5)
		assert.Nil(t, lines)
		assert.Zero(t, omitted)
	})
}
