package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/device"
)

// completePortNames completes serial port device names for --port flags.
func completePortNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ports, err := device.ListPorts(true)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	names := []string{"auto"}
	for _, p := range ports {
		if strings.HasPrefix(p.Device, toComplete) {
			names = append(names, p.Device)
		}
	}

	return names, cobra.ShellCompDirectiveNoFileComp
}

// registerCompletions registers all dynamic completions for commands.
// This is called from init() to set up completions after all commands are defined.
func registerCompletions() {
	for _, c := range []*cobra.Command{runCmd, replCmd} {
		if err := c.RegisterFlagCompletionFunc("port", completePortNames); err != nil {
			// Silently ignore - completions are optional
			_ = err
		}
	}
}

// init registers completions after all commands are set up.
func init() {
	cobra.OnInitialize(registerCompletions)
}
