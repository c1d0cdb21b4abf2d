package magic

import (
	"context"
	"time"

	"github.com/cameronsjo/dinghy/internal/device"
)

// stubBoard is a scripted Device for magic tests. Executed code is
// recorded; canned outputs and errors come back per call.
type stubBoard struct {
	execs     []string
	outputs   map[string]string // code → stdout
	execErr   error
	connected bool
	board     device.BoardInfo
	port      string

	tree    []device.Entry
	puts    map[string][]byte
	gets    map[string][]byte
	removed []string
	mkdirs  []string

	interrupted  bool
	disconnected bool
}

func newStubBoard() *stubBoard {
	return &stubBoard{
		outputs: map[string]string{},
		puts:    map[string][]byte{},
		gets:    map[string][]byte{},
		port:    "/dev/ttyACM0",
	}
}

func (s *stubBoard) Connect(ctx context.Context, port string, baud int) error {
	s.connected = true
	if port != "" {
		s.port = port
	}
	return nil
}

func (s *stubBoard) Disconnect()            { s.connected = false; s.disconnected = true }
func (s *stubBoard) Connected() bool        { return s.connected }
func (s *stubBoard) Board() device.BoardInfo { return s.board }
func (s *stubBoard) Port() string           { return s.port }

func (s *stubBoard) Exec(ctx context.Context, code string, consumer func([]byte)) error {
	s.execs = append(s.execs, code)
	if s.execErr != nil {
		return s.execErr
	}
	if out, ok := s.outputs[code]; ok && consumer != nil {
		consumer([]byte(out))
	}
	return nil
}

func (s *stubBoard) ExecDetached(ctx context.Context, code string) error {
	s.execs = append(s.execs, code)
	s.disconnected = true
	return nil
}

func (s *stubBoard) Eval(ctx context.Context, code string) (string, error) {
	if err := s.Exec(ctx, code, nil); err != nil {
		return "", err
	}
	return s.outputs[code], nil
}

func (s *stubBoard) Interrupt() error                  { s.interrupted = true; return nil }
func (s *stubBoard) SoftReset(ctx context.Context) error { return nil }
func (s *stubBoard) MarkDisconnected()                 { s.disconnected = true }

func (s *stubBoard) ListTree(ctx context.Context, path string) ([]device.Entry, error) {
	return s.tree, nil
}

func (s *stubBoard) FilePut(ctx context.Context, path string, data []byte) error {
	s.puts[path] = data
	return nil
}

func (s *stubBoard) FileGet(ctx context.Context, path string) ([]byte, error) {
	return s.gets[path], nil
}

func (s *stubBoard) Cat(ctx context.Context, path string, consumer func([]byte)) error {
	if consumer != nil {
		consumer(s.gets[path])
	}
	return nil
}

func (s *stubBoard) RemoveAll(ctx context.Context, path string) error {
	s.removed = append(s.removed, path)
	return nil
}

func (s *stubBoard) Remove(ctx context.Context, path string) error {
	s.removed = append(s.removed, path)
	return nil
}

func (s *stubBoard) Mkdir(ctx context.Context, path string) error {
	s.mkdirs = append(s.mkdirs, path)
	return nil
}

func (s *stubBoard) Rmdir(ctx context.Context, path string) error  { return nil }
func (s *stubBoard) Touch(ctx context.Context, path string) error  { return nil }

func (s *stubBoard) Statvfs(ctx context.Context, path string) (device.FSUsage, error) {
	return device.FSUsage{BlockSize: 4096, Blocks: 100, FreeBlocks: 40}, nil
}

func (s *stubBoard) UniqueID(ctx context.Context) (string, error) { return "e660c0d1c7593series", nil }
func (s *stubBoard) RTCNow(ctx context.Context) (time.Time, error) {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), nil
}
func (s *stubBoard) SyncRTC(ctx context.Context) error { return nil }

var _ Device = (*stubBoard)(nil)
