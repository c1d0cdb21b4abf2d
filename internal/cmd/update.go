package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/ui"
	"github.com/cameronsjo/dinghy/internal/update"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update dinghy to the latest version",
	Long: `Update dinghy to the latest version from GitHub releases.

This command will:
1. Check for a newer version on GitHub
2. Download the appropriate binary for your platform
3. Replace the current binary with the new version

Examples:
  dinghy update           # Update to latest version
  dinghy update --check   # Check for updates without installing`,
	Run: runUpdate,
}

var checkOnly bool

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
}

func runUpdate(cmd *cobra.Command, args []string) {
	ui.Info("Current version: %s (%s)", version, update.PlatformInfo())

	if checkOnly {
		checkForUpdate(cmd)
		return
	}

	performUpdate(cmd)
}

func checkForUpdate(cmd *cobra.Command) {
	ui.Info("Checking for updates...")

	release, available, err := update.CheckForUpdate(cmd.Context(), version)
	if err != nil {
		ui.Error("Failed to check for updates: %v", err)
		return
	}

	if !available {
		ui.Success("You're running the latest version!")
		return
	}

	ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
	fmt.Println()
	ui.Info("To update, run: dinghy update")
	fmt.Println()

	printChangelog(release.Changelog)
}

func performUpdate(cmd *cobra.Command) {
	ui.Info("Checking for updates...")

	release, err := update.Update(cmd.Context(), version)
	if err != nil {
		ui.Error("Update failed: %v", err)
		return
	}

	if release == nil {
		ui.Success("You're already running the latest version!")
		return
	}

	fmt.Println()
	ui.Success("Successfully updated to version %s!", release.Version)
	fmt.Println()

	printChangelog(release.Changelog)
}

func printChangelog(changelog string) {
	lines, omitted := update.ChangelogLines(changelog, 10)
	if len(lines) == 0 {
		return
	}
	ui.Yellow.Println("What's new:")
	for _, line := range lines {
		fmt.Printf("  %s\n", line)
	}
	if omitted > 0 {
		fmt.Printf("  ... (%d more lines)\n", omitted)
	}
}
