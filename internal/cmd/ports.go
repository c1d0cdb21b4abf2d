package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/ui"
)

var portsCmd = &cobra.Command{
	Use:     "ports",
	Aliases: []string{"spyglass"},
	Short:   "List serial ports, likely boards first",
	Long: `List serial ports in autodetection order.

The first port listed is the one "auto" would pick. Recognized
MicroPython board vendors sort ahead of other USB serial devices.`,
	RunE: runPorts,
}

var portsAll bool

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVarP(&portsAll, "all", "a", false, "include non-USB ports")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := device.ListPorts(portsAll)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		ui.Warning("No serial ports found. Is the board plugged in?")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tVID:PID\tSERIAL\tPRODUCT\tBOARD")
	for _, p := range ports {
		id := ""
		if p.VID != "" {
			id = p.VID + ":" + p.PID
		}
		board := p.Vendor
		if board != "" {
			board = "● " + board
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Device, id, p.SerialNumber, p.Product, board)
	}
	return w.Flush()
}
