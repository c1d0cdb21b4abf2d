// Package cmd provides the CLI commands for dinghy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/ui"
)

const version = "0.1.0"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dinghy",
	Short: "A small boat to your MicroPython board - Jupyter kernel over serial",
	Long: `dinghy - a small boat to your MicroPython board

A Jupyter kernel that rows your notebook cells out to a MicroPython
board over the serial raw REPL and ferries the output back.

SETUP
  install               Register the kernel with Jupyter
    --name              Kernelspec id (default "dinghy")
    --display-name      Name shown in the kernel picker
    --prefix            Install under <prefix>/share/jupyter instead
  uninstall             Remove the kernelspec

KERNEL
  run                   Serve one Jupyter session (launched by Jupyter)
    --connection-file   Connection file written by the front-end
    --port              Serial port, or "auto"
    --baud              Serial baud rate

DECK TOOLS
  ports                 List serial ports, likely boards first
    --all, -a           Include non-USB ports
  repl                  Open a plain serial terminal (Ctrl-] to leave)

DIAGNOSTICS
  doctor                Pre-flight checks - is the dinghy seaworthy?
  update                Update dinghy to the latest release
    --check             Check only, don't install

In a notebook, run %lsmagic for the cell and line magics.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// yarrCmd is the hidden easter egg command.
var yarrCmd = &cobra.Command{
	Use:    "yarr",
	Hidden: true,
	Short:  "Pirate mode",
	Run: func(cmd *cobra.Command, args []string) {
		ui.Yellow.Println("🏴‍☠️ Ahoy! Ye found the secret pirate mode!")
		fmt.Println("")
		fmt.Println("Command aliases for true pirates:")
		fmt.Println("  install    → shanghai")
		fmt.Println("  run        → row")
		fmt.Println("  ports      → spyglass")
		fmt.Println("  repl       → parley")
		fmt.Println("  doctor     → checkup")
		fmt.Println("")
		ui.Blue.Println("Run 'dinghy --help' for all commands.")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add hidden yarr command
	rootCmd.AddCommand(yarrCmd)

	// Version template
	rootCmd.SetVersionTemplate("dinghy version {{.Version}}\n")
}
