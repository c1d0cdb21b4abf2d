package magic

import (
	"context"
	"fmt"
)

func init() {
	registerLine(&LineMagic{
		Name:  "softreset",
		Doc:   "Clear out the Python heap and restart the interpreter",
		Usage: "%softreset",
		Run: func(ctx context.Context, m *Context, _ []string) error {
			return m.Dev.SoftReset(ctx)
		},
	})
	registerLine(&LineMagic{
		Name:  "reset",
		Doc:   "Hard reset the board via machine.reset()",
		Usage: "%reset",
		Run: func(ctx context.Context, m *Context, _ []string) error {
			err := m.Dev.ExecDetached(ctx, "import time, machine\ntime.sleep_ms(100)\nmachine.reset()")
			if err != nil {
				return err
			}
			fmt.Fprintln(m.Stdout, "Board reset")
			return nil
		},
	})
	registerLine(&LineMagic{
		Name:  "bootloader",
		Doc:   "Enter the board's bootloader via machine.bootloader()",
		Usage: "%bootloader",
		Run: func(ctx context.Context, m *Context, _ []string) error {
			err := m.Dev.ExecDetached(ctx, "import time, machine\ntime.sleep_ms(100)\nmachine.bootloader()")
			if err != nil {
				return err
			}
			fmt.Fprintln(m.Stdout, "Entering bootloader")
			return nil
		},
	})
}
