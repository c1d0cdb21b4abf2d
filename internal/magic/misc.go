package magic

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerLine(&LineMagic{
		Name:  "cd",
		Doc:   "Change the host working directory",
		Usage: "%cd [dir]",
		Run:   cdMagic,
	})
	registerLine(&LineMagic{
		Name:  "uid",
		Doc:   "Print the board's unique hardware id",
		Usage: "%uid",
		Run: func(ctx context.Context, m *Context, _ []string) error {
			uid, err := m.Dev.UniqueID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(m.Stdout, uid)
			return nil
		},
	})
	registerLine(&LineMagic{
		Name:  "lsmagic",
		Doc:   "List available magics",
		Usage: "%lsmagic",
		Run:   lsmagicMagic,
	})
}

func cdMagic(ctx context.Context, m *Context, args []string) error {
	dir := "~"
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.Chdir(fileutil.ExpandPath(dir)); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	fmt.Fprintln(m.Stdout, cwd)
	return nil
}

func lsmagicMagic(ctx context.Context, m *Context, _ []string) error {
	w := tabwriter.NewWriter(m.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "Cell magics:")
	for _, name := range CellNames() {
		cm, _ := LookupCell(name)
		fmt.Fprintf(w, "  %s\t%s\n", cm.Usage, cm.Doc)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Line magics:")
	for _, name := range LineNames() {
		lm, _ := LookupLine(name)
		fmt.Fprintf(w, "  %s\t%s\n", lm.Usage, lm.Doc)
	}
	return w.Flush()
}
