package magic

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/device"
)

func init() {
	registerLine(&LineMagic{
		Name:  "connect",
		Doc:   "Connect to a board, list candidate ports, or switch ports",
		Usage: "%connect [port|auto|list] [-b baud]",
		Run:   connectMagic,
	})
	registerLine(&LineMagic{
		Name:  "disconnect",
		Doc:   "Disconnect from the board",
		Usage: "%disconnect",
		Run: func(ctx context.Context, m *Context, _ []string) error {
			m.Dev.Disconnect()
			fmt.Fprintln(m.Stdout, "Disconnected")
			return nil
		},
	})
}

func connectMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("connect", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	baud := fs.IntP("baud", "b", 0, "Baud rate (default: keep current)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	port := ""
	if fs.NArg() > 0 {
		port = fs.Arg(0)
	}

	if port == "list" {
		ports, err := device.ListPorts(false)
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(m.Stdout, "No serial ports found")
			return nil
		}
		for _, p := range ports {
			vendor := p.Vendor
			if vendor == "" {
				vendor = "unknown"
			}
			m.Out.Printf("%s  %s:%s  %s (%s)\n", p.Device, p.VID, p.PID, p.Product, vendor)
		}
		return nil
	}

	if err := m.Dev.Connect(ctx, port, *baud); err != nil {
		return err
	}
	board := m.Dev.Board()
	m.Out.Green("Connected to %s on %s (%s %s)\n",
		board.Machine, m.Dev.Port(), board.Name, board.Version)
	return nil
}
