package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_Execute(t *testing.T) {
	t.Run("root command shows help", func(t *testing.T) {
		_, err := executeCmd(t)
		assert.NoError(t, err)
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCmd(t, "--help")
		assert.NoError(t, err)
		assert.Contains(t, output, "dinghy")
		assert.Contains(t, output, "MicroPython")
	})
}

func TestRootCmd_Structure(t *testing.T) {
	t.Run("has expected subcommands", func(t *testing.T) {
		resetRootCmd(t)
		commands := rootCmd.Commands()
		commandNames := make([]string, 0, len(commands))
		for _, cmd := range commands {
			commandNames = append(commandNames, cmd.Name())
		}

		assert.Contains(t, commandNames, "run")
		assert.Contains(t, commandNames, "install")
		assert.Contains(t, commandNames, "uninstall")
		assert.Contains(t, commandNames, "ports")
		assert.Contains(t, commandNames, "repl")
		assert.Contains(t, commandNames, "doctor")
		assert.Contains(t, commandNames, "update")
		assert.Contains(t, commandNames, "completion")
	})

	t.Run("yarr command is hidden", func(t *testing.T) {
		resetRootCmd(t)
		yarrFound := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == "yarr" {
				yarrFound = true
				assert.True(t, cmd.Hidden)
			}
		}
		assert.True(t, yarrFound, "yarr command should exist")
	})

	t.Run("pirate aliases", func(t *testing.T) {
		resetRootCmd(t)
		aliases := map[string]string{
			"install": "shanghai",
			"run":     "row",
			"ports":   "spyglass",
			"repl":    "parley",
			"doctor":  "checkup",
		}
		for _, cmd := range rootCmd.Commands() {
			if want, ok := aliases[cmd.Name()]; ok {
				assert.Contains(t, cmd.Aliases, want, cmd.Name())
			}
		}
	})
}

func TestYarrCmd(t *testing.T) {
	t.Run("yarr command executes", func(t *testing.T) {
		_, err := executeCmd(t, "yarr")
		assert.NoError(t, err)
	})
}

func TestCompletionCmd(t *testing.T) {
	t.Run("bash completion", func(t *testing.T) {
		_, err := executeCmd(t, "completion", "bash")
		assert.NoError(t, err)
	})

	t.Run("zsh completion", func(t *testing.T) {
		_, err := executeCmd(t, "completion", "zsh")
		assert.NoError(t, err)
	})

	t.Run("invalid shell", func(t *testing.T) {
		_, err := executeCmd(t, "completion", "invalid")
		assert.Error(t, err)
	})
}

func TestRootCmd_Description(t *testing.T) {
	resetRootCmd(t)
	assert.Contains(t, rootCmd.Short, "Jupyter kernel")
	assert.Contains(t, rootCmd.Long, "SETUP")
	assert.Contains(t, rootCmd.Long, "KERNEL")
	assert.Contains(t, rootCmd.Long, "DECK TOOLS")
	assert.Contains(t, rootCmd.Long, "DIAGNOSTICS")
}
