package magic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerLine(&LineMagic{
		Name:  "rlist",
		Doc:   "Recursively list files on the board or the host",
		Usage: "%rlist [-l] [--include pat] [--exclude pat] [path ...]",
		Run:   rlistMagic,
	})
	registerLine(&LineMagic{
		Name:  "rsync",
		Doc:   "One-way sync of host directories to the board",
		Usage: "%rsync [-n] [-u] [-r remote] [--include pat] [--exclude pat] [local ...]",
		Run:   rsyncMagic,
	})
}

// Meta describes one path in a sync set.
type Meta struct {
	Dir   bool
	Level int
	Mtime int64
	Size  int64
	Root  string // listing root the path is relative to
}

// FileSet maps relative paths to their metadata.
type FileSet map[string]Meta

// LocalTree lists a host directory in the same shape the board listing
// uses: directories before their contents, names sorted, levels counted
// below the root.
func LocalTree(root string) ([]device.Entry, error) {
	var entries []device.Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := device.Entry{
			Dir:   d.IsDir(),
			Level: strings.Count(rel, "/"),
			Path:  rel,
			Mtime: info.ModTime().Unix(),
		}
		if !e.Dir {
			e.Size = info.Size()
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	return entries, nil
}

// globMatch matches name against an fnmatch-style pattern: * crosses
// path separators, ? matches one rune.
func globMatch(pattern, name string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// filterEntries applies include/exclude patterns. Directories start out
// included so listings stay structurally sound, but an exclude pattern
// drops them too; the pattern matches the directory path itself, so
// dropping its contents as well takes `dir*` or `dir/*`.
func filterEntries(entries []device.Entry, include, exclude []string) []device.Entry {
	var kept []device.Entry
	for _, e := range entries {
		in := e.Dir
		for _, pat := range include {
			if globMatch(pat, e.Path) {
				in = true
				break
			}
		}
		for _, pat := range exclude {
			if globMatch(pat, e.Path) {
				in = false
				break
			}
		}
		if in {
			kept = append(kept, e)
		}
	}
	return kept
}

func entriesToSet(entries []device.Entry, root string) FileSet {
	set := make(FileSet, len(entries))
	for _, e := range entries {
		set[e.Path] = Meta{
			Dir:   e.Dir,
			Level: e.Level,
			Mtime: e.Mtime,
			Size:  e.Size,
			Root:  root,
		}
	}
	return set
}

// SyncPlan computes the host→board difference: paths to delete on the
// board, to add, and to update. A board file is stale when its kind,
// level or size differ, or its mtime is older than the host's.
func SyncPlan(local, remote FileSet) (del, add, upd []string) {
	for p := range remote {
		if _, ok := local[p]; !ok {
			del = append(del, p)
		}
	}
	for p := range local {
		if _, ok := remote[p]; !ok {
			add = append(add, p)
		}
	}
	for p, lf := range local {
		rf, ok := remote[p]
		if !ok || lf.Dir {
			continue
		}
		if rf.Dir != lf.Dir || rf.Level != lf.Level || rf.Size != lf.Size || rf.Mtime < lf.Mtime {
			upd = append(upd, p)
		}
	}
	sort.Strings(del)
	sort.Strings(add)
	sort.Strings(upd)
	return del, add, upd
}

func rlistMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("rlist", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	local := fs.BoolP("local", "l", false, "List host files instead of board files")
	include := fs.StringArray("include", []string{"*"}, "File patterns to include (repeatable)")
	exclude := fs.StringArray("exclude", nil, "File patterns to exclude (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	roots := fs.Args()
	if len(roots) == 0 {
		if *local {
			roots = strings.Split(m.Config.LocalPath, ":")
		} else {
			roots = strings.Split(m.Config.RemotePath, ":")
		}
	}

	for _, root := range roots {
		var entries []device.Entry
		var err error
		if *local {
			entries, err = LocalTree(fileutil.ExpandPath(root))
		} else {
			entries, err = m.Dev.ListTree(ctx, root)
		}
		if err != nil {
			return err
		}
		for _, e := range filterEntries(entries, *include, *exclude) {
			indent := strings.Repeat("    ", e.Level)
			name := path.Base(e.Path)
			if e.Dir {
				m.Out.Printf("%7s  %-19s %s ", "", "", indent)
				m.Out.Green("%s/\n", name)
			} else {
				m.Out.Printf("%7d  %-19s %s ", e.Size, timestamp(e.Mtime), indent)
				m.Out.Cyan("%s\n", name)
			}
		}
	}
	return nil
}

func rsyncMagic(ctx context.Context, m *Context, args []string) error {
	fs := pflag.NewFlagSet("rsync", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	dryRun := fs.BoolP("dry-run", "n", false, "Only show differences, do not sync")
	uploadOnly := fs.BoolP("upload-only", "u", false, "Only upload changes, never delete board files")
	remoteRoot := fs.StringP("remote", "r", m.Config.RemotePath, "Board directory to sync into")
	include := fs.StringArray("include", []string{"*"}, "File patterns to include (repeatable)")
	exclude := fs.StringArray("exclude", nil, "File patterns to exclude (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	localRoots := fs.Args()
	if len(localRoots) == 0 {
		localRoots = strings.Split(m.Config.LocalPath, ":")
	}

	localSet := make(FileSet)
	for _, root := range localRoots {
		root = fileutil.ExpandPath(root)
		entries, err := LocalTree(root)
		if err != nil {
			return err
		}
		for p, meta := range entriesToSet(filterEntries(entries, *include, *exclude), root) {
			localSet[p] = meta
		}
	}

	remoteEntries, err := m.Dev.ListTree(ctx, *remoteRoot)
	if err != nil {
		return err
	}
	remoteSet := entriesToSet(filterEntries(remoteEntries, *include, *exclude), *remoteRoot)

	del, add, upd := SyncPlan(localSet, remoteSet)
	if len(del)+len(add)+len(upd) == 0 {
		m.Out.Green("Local and remote directories match\n")
		return nil
	}

	if len(del) > 0 {
		m.Out.Red("Delete\n")
		for _, f := range del {
			m.Out.Printf("  %s\n", f)
			if !*dryRun && !*uploadOnly {
				if err := m.Dev.RemoveAll(ctx, path.Join(*remoteRoot, f)); err != nil {
					return err
				}
			}
		}
	}

	push := func(f string) error {
		meta := localSet[f]
		dst := path.Join(*remoteRoot, f)
		if meta.Dir {
			err := m.Dev.Mkdir(ctx, dst)
			if err != nil {
				// Already present is fine when updating in place.
				var tb *device.TracebackError
				if errors.As(err, &tb) && strings.Contains(tb.Traceback, "EEXIST") {
					return nil
				}
			}
			return err
		}
		data, err := os.ReadFile(filepath.Join(meta.Root, filepath.FromSlash(f)))
		if err != nil {
			return err
		}
		return m.Dev.FilePut(ctx, dst, data)
	}

	if len(add) > 0 {
		m.Out.Green("Add\n")
		for _, f := range add {
			m.Out.Printf("  %s\n", f)
			if !*dryRun {
				if err := push(f); err != nil {
					return err
				}
			}
		}
	}

	if len(upd) > 0 {
		m.Out.Cyan("Update\n")
		for _, f := range upd {
			m.Out.Printf("  %s\n", f)
			if !*dryRun {
				if err := push(f); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
