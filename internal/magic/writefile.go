package magic

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerCell(&CellMagic{
		Name:  "writefile",
		Doc:   "Write the cell body to a host file",
		Usage: "%%writefile [-a] path",
		Run:   writefileMagic,
	})
}

func writefileMagic(ctx context.Context, m *Context, args []string, body string) (bool, error) {
	fs := pflag.NewFlagSet("writefile", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	appendFlag := fs.BoolP("append", "a", false, "Append to file. Default is overwrite.")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if fs.NArg() != 1 {
		return false, fmt.Errorf("usage: %%%%writefile [-a] path")
	}

	path := fileutil.ExpandPath(fs.Arg(0))
	fmt.Fprintf(m.Stdout, "Writing %s\n", path)
	if *appendFlag {
		return false, fileutil.AppendFile(path, []byte(body), 0o644)
	}
	return false, fileutil.WriteFile(path, []byte(body), 0o644)
}
