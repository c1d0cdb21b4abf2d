package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/config"
	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/kernelspec"
	"github.com/cameronsjo/dinghy/internal/lock"
	"github.com/cameronsjo/dinghy/internal/preflight"
	"github.com/cameronsjo/dinghy/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Aliases: []string{"checkup"},
	Short:   "Pre-flight checks - is the dinghy seaworthy?",
	Long:    "Run diagnostic checks for serial ports, Jupyter paths, and helper tools.",
	Run:     runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	ui.Header("Running pre-flight checks...")
	fmt.Println()

	passed := 0
	failed := 0
	warned := 0

	// Check: a board-looking serial port
	if ports, err := device.ListPorts(false); err != nil {
		ui.Red.Printf("  x Serial enumeration failed: %v\n", err)
		failed++
	} else if len(ports) == 0 {
		ui.Yellow.Println("  ! No USB serial ports found (board unplugged?)")
		warned++
	} else if ports[0].Vendor != "" {
		ui.Green.Printf("  * Board found: %s (%s)\n", ports[0].Device, ports[0].Vendor)
		passed++
	} else {
		ui.Yellow.Printf("  ! Serial port found but vendor unrecognized: %s\n", ports[0].Device)
		warned++
	}

	// Check: Jupyter data directory writable
	if dir, err := kernelspec.DataDir(); err != nil {
		ui.Red.Printf("  x Jupyter data directory unknown: %v\n", err)
		failed++
	} else if err := os.MkdirAll(filepath.Join(dir, "kernels"), 0o755); err != nil {
		ui.Red.Printf("  x Jupyter data directory not writable: %s\n", dir)
		failed++
	} else {
		ui.Green.Printf("  * Jupyter data directory: %s\n", dir)
		passed++
	}

	// Check: configuration loads and history path is usable
	if cfg, err := config.Load(); err != nil {
		ui.Red.Printf("  x Configuration broken: %v\n", err)
		failed++
	} else {
		ui.Green.Printf("  * Configuration loaded (port %s, %d baud)\n", cfg.Port, cfg.Baud)
		passed++
		if path, err := cfg.HistoryPath(); err != nil {
			ui.Yellow.Printf("  ! History path unavailable: %v\n", err)
			warned++
		} else {
			ui.Green.Printf("  * History database: %s\n", path)
			passed++
		}
	}

	// Check: stale port locks from crashed kernels
	if stale, err := lock.Stale(); err != nil {
		ui.Yellow.Printf("  ! Could not inspect port locks: %v\n", err)
		warned++
	} else if len(stale) > 0 {
		for _, path := range stale {
			ui.Yellow.Printf("  ! Stale port lock: %s (safe to delete)\n", path)
		}
		warned += len(stale)
	} else {
		ui.Green.Println("  * No stale port locks")
		passed++
	}

	// Check: helper tools
	missing := preflight.CheckOptionalBinaries()
	if len(missing) == 0 {
		ui.Green.Println("  * All helper tools present")
		passed++
	}
	for _, bin := range missing {
		ui.Yellow.Printf("  ! %s missing. %s\n", bin.Name, bin.InstallHint)
		warned++
	}

	fmt.Println()
	if failed > 0 {
		ui.Error("%d passed, %d warnings, %d failed", passed, warned, failed)
		os.Exit(1)
	}
	if warned > 0 {
		ui.Warning("%d passed, %d warnings", passed, warned)
		return
	}
	ui.Success("All %d checks passed. Seaworthy!", passed)
}
