package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/kernelspec"
	"github.com/cameronsjo/dinghy/internal/ui"
)

var installCmd = &cobra.Command{
	Use:     "install",
	Aliases: []string{"shanghai"},
	Short:   "Register the kernel with Jupyter",
	Long: `Write a kernelspec so the kernel appears in Jupyter's picker.

The spec points at this binary's absolute path; reinstall after moving
the binary. Multiple boards can be registered side by side with
different --name values and DINGHY_PORT settings.

Examples:
  dinghy install
  dinghy install --name dinghy-pico --display-name "MicroPython (Pico)"
  dinghy install --prefix /opt/jupyter`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the kernelspec",
	RunE:  runUninstall,
}

var (
	specName        string
	specDisplayName string
	specPrefix      string
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)

	installCmd.Flags().StringVar(&specName, "name", kernelspec.DefaultName, "kernelspec id")
	installCmd.Flags().StringVar(&specDisplayName, "display-name", "MicroPython (dinghy)", "name shown in the kernel picker")
	installCmd.Flags().StringVar(&specPrefix, "prefix", "", "install under <prefix>/share/jupyter")

	uninstallCmd.Flags().StringVar(&specName, "name", kernelspec.DefaultName, "kernelspec id")
	uninstallCmd.Flags().StringVar(&specPrefix, "prefix", "", "uninstall from <prefix>/share/jupyter")
}

func runInstall(cmd *cobra.Command, args []string) error {
	binary, err := os.Executable()
	if err != nil {
		return err
	}
	binary, err = filepath.Abs(binary)
	if err != nil {
		return err
	}

	dir, err := kernelspec.Install(kernelspec.New(binary, specDisplayName), specPrefix, specName)
	if err != nil {
		return err
	}

	ui.Success("Installed kernelspec %q at %s", specName, dir)
	ui.Anchor("Pick %q in Jupyter to cast off.", specDisplayName)
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	dir, err := kernelspec.Uninstall(specPrefix, specName)
	if err != nil {
		return err
	}
	ui.Success("Removed kernelspec %q from %s", specName, dir)
	return nil
}
