// Package magic implements the notebook magic system: cell parsing,
// the line/cell magic registries, and the magics themselves.
package magic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cameronsjo/dinghy/internal/config"
	"github.com/cameronsjo/dinghy/internal/device"
	"github.com/cameronsjo/dinghy/internal/ui"
)

// Device is the board surface the magics drive. Declared here, on the
// consumer side, so kernel tests can substitute a scripted board.
type Device interface {
	Connect(ctx context.Context, port string, baud int) error
	Disconnect()
	Connected() bool
	Board() device.BoardInfo
	Port() string

	Exec(ctx context.Context, code string, consumer func([]byte)) error
	ExecDetached(ctx context.Context, code string) error
	Eval(ctx context.Context, code string) (string, error)
	Interrupt() error
	SoftReset(ctx context.Context) error
	MarkDisconnected()

	ListTree(ctx context.Context, path string) ([]device.Entry, error)
	FilePut(ctx context.Context, path string, data []byte) error
	FileGet(ctx context.Context, path string) ([]byte, error)
	Cat(ctx context.Context, path string, consumer func([]byte)) error
	RemoveAll(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Touch(ctx context.Context, path string) error
	Statvfs(ctx context.Context, path string) (device.FSUsage, error)
	UniqueID(ctx context.Context) (string, error)
	RTCNow(ctx context.Context) (time.Time, error)
	SyncRTC(ctx context.Context) error
}

// Verify the real session satisfies the interface.
var _ Device = (*device.Session)(nil)

// PackageInstaller installs MicroPython packages onto the board.
// Implemented by the mptool wrapper around the external mpremote CLI.
type PackageInstaller interface {
	Install(ctx context.Context, pkgs []string, target, index string, noMpy bool, out io.Writer) error
}

// Context carries everything a magic needs to act on the notebook's
// behalf. One Context lives for the whole kernel session.
type Context struct {
	Dev    Device
	Config *config.Config
	Mip    PackageInstaller

	// Stdout and Stderr feed the notebook's stream messages.
	Stdout io.Writer
	Stderr io.Writer

	// Out paints colored output into Stdout.
	Out *ui.Printer

	shellMu   sync.Mutex
	shellPgid int
}

// NewContext builds a magic context over the given board and streams.
func NewContext(dev Device, cfg *config.Config, stdout, stderr io.Writer) *Context {
	return &Context{
		Dev:    dev,
		Config: cfg,
		Stdout: stdout,
		Stderr: stderr,
		Out:    ui.NewPrinter(stdout),
	}
}

// Interrupt breaks whatever is currently executing: a %%shell subprocess
// gets its process group signalled, the board gets Ctrl-C.
func (m *Context) Interrupt() {
	m.shellMu.Lock()
	pgid := m.shellPgid
	m.shellMu.Unlock()
	if pgid != 0 {
		interruptGroup(pgid)
	}
	if m.Dev != nil {
		m.Dev.Interrupt()
	}
}

func (m *Context) trackShell(pgid int) {
	m.shellMu.Lock()
	m.shellPgid = pgid
	m.shellMu.Unlock()
}

func (m *Context) untrackShell() {
	m.shellMu.Lock()
	m.shellPgid = 0
	m.shellMu.Unlock()
}

// ExecRemote runs device code, streaming stdout to the notebook.
// Board tracebacks and connection failures are reported on the stderr
// stream and do not fail the cell; the notebook shows them inline.
func (m *Context) ExecRemote(ctx context.Context, code string) {
	err := m.Dev.Exec(ctx, code, m.Consume)
	var tb *device.TracebackError
	switch {
	case err == nil:
	case errors.As(err, &tb):
		fmt.Fprintln(m.Stderr, strings.TrimSpace(tb.Traceback))
	default:
		fmt.Fprintln(m.Stderr, err.Error())
	}
}

// Consume forwards a chunk of board stdout to the notebook, stripping
// stray raw-REPL EOT bytes.
func (m *Context) Consume(data []byte) {
	s := strings.ReplaceAll(string(data), "\x04", "")
	if s != "" {
		io.WriteString(m.Stdout, s)
	}
}

// LineMagic is a %-magic operating on its argument list.
type LineMagic struct {
	Name  string
	Doc   string
	Usage string
	Run   func(ctx context.Context, m *Context, args []string) error
}

// CellMagic is a %%-magic operating on arguments plus the cell body.
// Run may report stop=true to terminate processing of the cell's
// remaining chunks.
type CellMagic struct {
	Name  string
	Doc   string
	Usage string
	Run   func(ctx context.Context, m *Context, args []string, body string) (stop bool, err error)
}

var (
	lineMagics = map[string]*LineMagic{}
	cellMagics = map[string]*CellMagic{}
)

func registerLine(m *LineMagic) {
	if _, dup := lineMagics[m.Name]; dup {
		panic("duplicate line magic " + m.Name)
	}
	lineMagics[m.Name] = m
}

func registerCell(m *CellMagic) {
	if _, dup := cellMagics[m.Name]; dup {
		panic("duplicate cell magic " + m.Name)
	}
	cellMagics[m.Name] = m
}

// LookupLine returns the named line magic.
func LookupLine(name string) (*LineMagic, bool) {
	m, ok := lineMagics[name]
	return m, ok
}

// LookupCell returns the named cell magic.
func LookupCell(name string) (*CellMagic, bool) {
	m, ok := cellMagics[name]
	return m, ok
}

// LineNames returns all registered line magic names, sorted.
func LineNames() []string {
	names := make([]string, 0, len(lineMagics))
	for n := range lineMagics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CellNames returns all registered cell magic names, sorted.
func CellNames() []string {
	names := make([]string, 0, len(cellMagics))
	for n := range cellMagics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
