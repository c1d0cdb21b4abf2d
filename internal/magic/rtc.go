package magic

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

func init() {
	registerLine(&LineMagic{
		Name:  "rtc",
		Doc:   "Print the board clock, or set it from host time",
		Usage: "%rtc [-s]",
		Run:   rtcMagic,
	})
}

func rtcMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("rtc", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	set := fs.BoolP("set", "s", false, "Set the board RTC to the host's current time")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *set {
		if err := m.Dev.SyncRTC(ctx); err != nil {
			return err
		}
		fmt.Fprintln(m.Stdout, "RTC set from host time")
		return nil
	}

	t, err := m.Dev.RTCNow(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(m.Stdout, t.Format("2006-Jan-02 15:04:05"))
	return nil
}
