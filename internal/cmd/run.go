package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/config"
	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/history"
	"github.com/cameronsjo/dinghy/internal/kernel"
	"github.com/cameronsjo/dinghy/internal/log"
	"github.com/cameronsjo/dinghy/internal/mptool"
	"github.com/cameronsjo/dinghy/internal/preflight"
	"github.com/cameronsjo/dinghy/internal/protocol"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"row"},
	Short:   "Serve one Jupyter session",
	Long: `Serve one Jupyter session over the sockets named in the connection file.

This is the command the kernelspec launches; Jupyter writes the
connection file and passes its path. Running it by hand only makes
sense with a hand-written connection file.`,
	RunE: runKernel,
}

var (
	runConnectionFile string
	runPort           string
	runBaud           int
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConnectionFile, "connection-file", "", "Jupyter connection file (required)")
	runCmd.Flags().StringVar(&runPort, "port", "", "serial port, or \"auto\"")
	runCmd.Flags().IntVar(&runBaud, "baud", 0, "serial baud rate")
	runCmd.MarkFlagRequired("connection-file")
}

func runKernel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runPort != "" {
		cfg.Port = runPort
	}
	if runBaud != 0 {
		cfg.Baud = runBaud
	}

	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("run")

	// Missing helpers are worth a line in the log, nothing more; the
	// kernel itself speaks to the board without them.
	warnings, _ := preflight.CheckAll()
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	info, err := protocol.ReadConnectionFile(runConnectionFile)
	if err != nil {
		return err
	}

	// The front-end interrupts with interrupt_request, never SIGINT; a
	// stray ^C in the launching terminal must not kill the kernel.
	signal.Ignore(os.Interrupt)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	dev := device.NewSession(cfg.Port, cfg.Baud)
	defer dev.Close()

	// The board session and history survive in-place restarts; only the
	// Jupyter-facing state is rebuilt.
	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	mip := mptool.New(dev)

	logger.Info().Str("port", cfg.Port).Int("baud", cfg.Baud).Msg("kernel starting")
	for {
		err := kernel.New(version, cfg, info, dev, hist, mip).Run(ctx)
		if errors.Is(err, kernel.ErrRestart) {
			logger.Info().Msg("restarting kernel")
			continue
		}
		if err != nil {
			return fmt.Errorf("kernel: %w", err)
		}
		logger.Info().Msg("kernel stopped")
		return nil
	}
}

// openHistory is best-effort: a missing or broken database means the
// notebook runs without history, not that it fails to start.
func openHistory(cfg *config.Config) *history.Store {
	logger := log.WithComponent("run")
	path, err := cfg.HistoryPath()
	if err != nil {
		logger.Warn().Err(err).Msg("history disabled")
		return nil
	}
	hist, err := history.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil
	}
	return hist
}
