package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/cameronsjo/dinghy/internal/config"
	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/lock"
	"github.com/cameronsjo/dinghy/internal/ui"
)

// exitKey detaches the terminal, same key as telnet and screen.
const exitKey = 0x1d // Ctrl-]

var replCmd = &cobra.Command{
	Use:     "repl",
	Aliases: []string{"parley"},
	Short:   "Open a plain serial terminal to the board",
	Long: `Attach the terminal directly to the board's REPL.

Keystrokes pass straight through, so Ctrl-C interrupts the board and
Ctrl-D soft-resets it. Press Ctrl-] to come back ashore.`,
	RunE: runRepl,
}

var (
	replPort string
	replBaud int
)

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().StringVar(&replPort, "port", "", "serial port, or \"auto\"")
	replCmd.Flags().IntVar(&replBaud, "baud", 0, "serial baud rate")
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	port := cfg.Port
	if replPort != "" {
		port = replPort
	}
	baud := cfg.Baud
	if replBaud != 0 {
		baud = replBaud
	}
	if port == "" || port == "auto" {
		port, err = device.Autodetect()
		if err != nil {
			return err
		}
	}

	portLock, err := lock.ForPort(port)
	if err != nil {
		return err
	}
	if err := portLock.Acquire(); err != nil {
		return err
	}
	defer portLock.Release()

	sp, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("open %s: %w", port, err)
	}
	defer sp.Close()

	ui.Board("Connected to %s at %d baud. Ctrl-] to leave.", port, baud)

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer func() {
		term.Restore(int(os.Stdin.Fd()), oldState)
		fmt.Println()
		ui.Anchor("Back ashore.")
	}()

	go io.Copy(os.Stdout, sp)

	// Ctrl-B refreshes the friendly-REPL banner so the prompt shows up.
	sp.Write([]byte("\r\x02"))

	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil
		}
		chunk := buf[:n]
		if i := bytes.IndexByte(chunk, exitKey); i >= 0 {
			sp.Write(chunk[:i])
			return nil
		}
		if _, err := sp.Write(chunk); err != nil {
			return fmt.Errorf("write %s: %w", port, err)
		}
	}
}
