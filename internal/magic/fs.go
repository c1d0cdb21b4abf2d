package magic

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerLine(&LineMagic{
		Name:  "fs",
		Doc:   "Board filesystem operations (: prefixes board paths)",
		Usage: "%fs ls|cat|cp|rm|mkdir|rmdir|touch|df ...",
		Run:   fsMagic,
	})
}

// boardPath strips the mpremote-style ":" board prefix.
func boardPath(p string) string {
	return strings.TrimPrefix(p, ":")
}

func isBoardPath(p string) bool {
	return strings.HasPrefix(p, ":")
}

func fsMagic(ctx context.Context, m *Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %%fs ls|cat|cp|rm|mkdir|rmdir|touch|df ...")
	}
	op, rest := args[0], args[1:]

	switch op {
	case "ls":
		return fsLs(ctx, m, rest)
	case "cat":
		return fsCat(ctx, m, rest)
	case "cp":
		return fsCp(ctx, m, rest)
	case "rm":
		return fsRm(ctx, m, rest)
	case "mkdir":
		return fsEach(ctx, m, rest, m.Dev.Mkdir)
	case "rmdir":
		return fsEach(ctx, m, rest, m.Dev.Rmdir)
	case "touch":
		return fsEach(ctx, m, rest, m.Dev.Touch)
	case "df":
		return fsDf(ctx, m, rest)
	default:
		return fmt.Errorf("unknown %%fs operation %q", op)
	}
}

func fsLs(ctx context.Context, m *Context, args []string) error {
	dir := "/"
	if len(args) > 0 {
		dir = boardPath(args[0])
	}
	entries, err := m.Dev.ListTree(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Level != 0 {
			continue
		}
		if e.Dir {
			m.Out.Green("%8s  %s/\n", "", e.Path)
		} else {
			m.Out.Printf("%8d  ", e.Size)
			m.Out.Cyan("%s\n", e.Path)
		}
	}
	return nil
}

func fsCat(ctx context.Context, m *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %%fs cat :path")
	}
	return m.Dev.Cat(ctx, boardPath(args[0]), m.Consume)
}

// fsCp copies between host and board; the side with the ":" prefix is
// the board side.
func fsCp(ctx context.Context, m *Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %%fs cp src dst")
	}
	src, dst := args[0], args[1]

	switch {
	case !isBoardPath(src) && isBoardPath(dst):
		data, err := os.ReadFile(fileutil.ExpandPath(src))
		if err != nil {
			return err
		}
		target := boardPath(dst)
		if strings.HasSuffix(target, "/") || target == "" {
			target = path.Join(target, path.Base(src))
		}
		return m.Dev.FilePut(ctx, target, data)
	case isBoardPath(src) && !isBoardPath(dst):
		data, err := m.Dev.FileGet(ctx, boardPath(src))
		if err != nil {
			return err
		}
		target := fileutil.ExpandPath(dst)
		if strings.HasSuffix(dst, "/") {
			target = path.Join(target, path.Base(boardPath(src)))
		}
		return fileutil.WriteFile(target, data, 0o644)
	default:
		return fmt.Errorf("one side must be a board path (: prefix)")
	}
}

func fsRm(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("fs rm", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	recursive := fs.BoolP("recursive", "r", false, "Remove directories recursively")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: %%fs rm [-r] :path ...")
	}
	for _, arg := range fs.Args() {
		p := boardPath(arg)
		var err error
		if *recursive {
			err = m.Dev.RemoveAll(ctx, p)
		} else {
			err = m.Dev.Remove(ctx, p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func fsEach(ctx context.Context, m *Context, args []string, op func(context.Context, string) error) error {
	if len(args) == 0 {
		return fmt.Errorf("missing path")
	}
	for _, arg := range args {
		if err := op(ctx, boardPath(arg)); err != nil {
			return err
		}
	}
	return nil
}

func fsDf(ctx context.Context, m *Context, args []string) error {
	dir := "/"
	if len(args) > 0 {
		dir = boardPath(args[0])
	}
	usage, err := m.Dev.Statvfs(ctx, dir)
	if err != nil {
		return err
	}
	used := usage.Total() - usage.Free()
	m.Out.Printf("%-8s %10s %10s %10s\n", "mount", "size", "used", "avail")
	m.Out.Printf("%-8s %10d %10d %10d\n", dir, usage.Total(), used, usage.Free())
	return nil
}

// timestamp formats a unix mtime the way listings show it.
func timestamp(mtime int64) string {
	return time.Unix(mtime, 0).Format("2006-01-02 15:04:05")
}
