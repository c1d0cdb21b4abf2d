package magic

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerLine(&LineMagic{
		Name:  "run",
		Doc:   "Execute a host file's contents on the board",
		Usage: "%run [--no-follow] file.py",
		Run:   runMagic,
	})
}

func runMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	noFollow := fs.Bool("no-follow", false, "Start the script and detach without waiting for output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %%run [--no-follow] file.py")
	}

	path := fileutil.ExpandPath(fs.Arg(0))
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if *noFollow {
		return m.Dev.ExecDetached(ctx, string(code))
	}
	m.ExecRemote(ctx, string(code))
	return nil
}
