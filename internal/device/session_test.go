package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardJSON = `{"name": "micropython", "version": "1.22.0", "platform": "rp2", "machine": "Raspberry Pi Pico W with RP2040"}`

// connectScript is the wire exchange of a full lazy connect: raw-REPL
// banner, RTC sync (with the one-time raw-paste probe), board probe.
func connectScript() []string {
	return []string{
		banner,
		"R\x00",                        // raw-paste declined
		"OK\x04\x04>",                  // RTC sync, no output
		"OK" + boardJSON + "\x04\x04>", // board info probe
	}
}

func newTestSession(t *testing.T, board *mockBoard) *Session {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	s := NewSession("mock0", 115200)
	s.open = func(port string, baud int) (Conn, error) {
		assert.Equal(t, "mock0", port)
		assert.Equal(t, 115200, baud)
		return board, nil
	}
	s.clock = func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	}
	return s
}

func TestSession_LazyConnect(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)
	defer s.Close()

	assert.False(t, s.Connected(), "nothing should connect before the first operation")

	board.feed("OK2\r\n\x04\x04>")
	out, err := s.Eval(context.Background(), "print(1+1)")
	require.NoError(t, err)
	assert.Equal(t, "2\r\n", out)

	assert.True(t, s.Connected())
	assert.Equal(t, "mock0", s.Port())
	assert.Equal(t, BoardInfo{
		Name:     "micropython",
		Version:  "1.22.0",
		Platform: "rp2",
		Machine:  "Raspberry Pi Pico W with RP2040",
	}, s.Board())

	// The RTC is synced on connect. 2024-01-02 is a Tuesday, weekday 1
	// in MicroPython's counting.
	assert.Contains(t, board.written(), "machine.RTC().datetime((2024, 1, 2, 1, 3, 4, 5, 0))")
}

func TestSession_TracebackKeepsConnection(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)
	defer s.Close()

	board.feed("OK\x04Traceback (most recent call last):\r\nValueError: boom\r\n\x04>")
	err := s.Exec(context.Background(), "raise ValueError('boom')", nil)

	var tb *TracebackError
	require.ErrorAs(t, err, &tb)
	assert.Contains(t, tb.Traceback, "ValueError: boom")
	assert.True(t, s.Connected(), "a Python exception is not a connection failure")
}

func TestSession_ConnectHonorsContext(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	s := NewSession("mock0", 115200)
	s.open = func(port string, baud int) (Conn, error) {
		return nil, ErrNoPort
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Exec(ctx, "print(1)", nil)
	assert.Error(t, err)
	assert.False(t, s.Connected())
}

func TestSession_Disconnect(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)

	board.feed("OK\x04\x04>")
	require.NoError(t, s.Exec(context.Background(), "pass", nil))
	require.True(t, s.Connected())

	s.Disconnect()
	assert.False(t, s.Connected())
	assert.True(t, board.wasClosed())
	assert.Contains(t, board.written(), "\r\x02", "disconnect should restore the friendly REPL")
}

func TestSession_MarkDisconnected(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)

	board.feed("OK\x04\x04>")
	require.NoError(t, s.Exec(context.Background(), "pass", nil))

	s.MarkDisconnected()
	assert.False(t, s.Connected())
	assert.True(t, board.wasClosed())
}

func TestSession_ReconnectAfterDrop(t *testing.T) {
	first := newMockBoard(connectScript()...)
	s := newTestSession(t, first)
	defer s.Close()

	board := first
	s.open = func(port string, baud int) (Conn, error) {
		return board, nil
	}

	first.feed("OK\x04\x04>")
	require.NoError(t, s.Exec(context.Background(), "pass", nil))

	// Simulate an unplug; the next operation reconnects transparently.
	s.MarkDisconnected()
	second := newMockBoard(connectScript()...)
	second.feed("OK42\r\n\x04\x04>")
	board = second

	out, err := s.Eval(context.Background(), "print(42)")
	require.NoError(t, err)
	assert.Equal(t, "42\r\n", out)
	assert.True(t, s.Connected())
}

func TestSession_EmptyCodeIsNoop(t *testing.T) {
	s := newTestSession(t, newMockBoard())
	require.NoError(t, s.Exec(context.Background(), "   \n  ", nil))
	assert.False(t, s.Connected(), "empty code must not trigger a connect")
}

func TestSession_InterruptWithoutConnection(t *testing.T) {
	s := newTestSession(t, newMockBoard())
	assert.ErrorIs(t, s.Interrupt(), ErrNotConnected)
}
