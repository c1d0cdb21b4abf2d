package magic

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

func init() {
	registerLine(&LineMagic{
		Name:  "mip",
		Doc:   "Install packages onto the board via the mpremote CLI",
		Usage: "%mip install pkg ... [--target dir] [--index url] [--no-mpy]",
		Run:   mipMagic,
	})
}

func mipMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("mip", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	target := fs.String("target", "", "Destination directory on the board")
	index := fs.String("index", "", "Package index URL")
	noMpy := fs.Bool("no-mpy", false, "Install source .py files instead of compiled .mpy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 || fs.Arg(0) != "install" {
		return fmt.Errorf("usage: %%mip install pkg ... [--target dir] [--index url] [--no-mpy]")
	}
	if m.Mip == nil {
		return fmt.Errorf("package installation is not available in this session")
	}
	return m.Mip.Install(ctx, fs.Args()[1:], *target, *index, *noMpy, m.Stdout)
}
