package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/cameronsjo/dinghy/internal/lock"
	"github.com/cameronsjo/dinghy/internal/log"
)

// BoardInfo describes the connected board, probed on first connect.
type BoardInfo struct {
	Name     string `json:"name"`     // sys.implementation.name, e.g. "micropython"
	Version  string `json:"version"`  // interpreter version, e.g. "1.22.0"
	Platform string `json:"platform"` // sys.platform, e.g. "rp2"
	Machine  string `json:"machine"`  // os.uname().machine, e.g. "Raspberry Pi Pico W"
}

// Session manages the connection to one MicroPython board.
//
// Connection is lazy: nothing is opened until the first operation needs
// the board. Attaching never soft-resets, so interpreter state on the
// board survives kernel restarts. A dropped connection marks the session
// disconnected; the next operation reconnects with backoff.
type Session struct {
	mu sync.Mutex

	port string // configured port, may be "auto"
	baud int

	resolved  string // actual device path once connected
	conn      Conn
	tr        *Transport
	portLock  *lock.PortLock
	connected bool
	board     BoardInfo

	// open and clock are swappable for tests.
	open  func(port string, baud int) (Conn, error)
	clock func() time.Time

	log zerolog.Logger
}

// NewSession creates a session for the given port ("auto" to autodetect)
// and baud rate.
func NewSession(port string, baud int) *Session {
	return &Session{
		port:  port,
		baud:  baud,
		open:  openSerial,
		clock: time.Now,
		log:   log.WithComponent("device"),
	}
}

// Connected reports whether a board connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Board returns the probed board description, zero until first connect.
func (s *Session) Board() BoardInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

// Port returns the resolved device path, or the configured one before
// the first connect.
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != "" {
		return s.resolved
	}
	return s.port
}

// Baud returns the configured baud rate.
func (s *Session) Baud() int {
	return s.baud
}

// Connect establishes the board connection, optionally switching to a
// different port or baud rate first. Empty port and zero baud keep the
// current settings.
func (s *Session) Connect(ctx context.Context, port string, baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		s.closeLocked()
	}
	if port != "" {
		s.port = port
		s.resolved = ""
	}
	if baud != 0 {
		s.baud = baud
	}
	return s.connectLocked(ctx)
}

// Disconnect closes the connection, restoring the friendly REPL prompt
// so a human on a terminal gets a usable board back.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Close releases all session resources.
func (s *Session) Close() error {
	s.Disconnect()
	return nil
}

// Exec runs code on the board, streaming its stdout to consumer as it is
// produced. A Python exception on the board is returned as a
// *TracebackError; the board connection stays up.
func (s *Session) Exec(ctx context.Context, code string, consumer func([]byte)) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}

	errOut, err := s.tr.Exec(ctx, []byte(code), consumer)
	if err != nil {
		// Transport-level failure: assume the board is gone.
		s.dropLocked(err)
		return err
	}
	if tb := strings.TrimSpace(string(errOut)); tb != "" {
		return &TracebackError{Traceback: tb}
	}
	return nil
}

// Eval runs code on the board and returns its captured stdout.
func (s *Session) Eval(ctx context.Context, code string) (string, error) {
	var out strings.Builder
	err := s.Exec(ctx, code, func(b []byte) { out.Write(b) })
	return out.String(), err
}

// Interrupt delivers Ctrl-C to the board. It deliberately bypasses the
// exec lock: its whole point is to break an execution that is holding it.
func (s *Session) Interrupt() error {
	// Reading s.tr without the lock is safe: the transport pointer is
	// only replaced while no execution is in flight.
	tr := s.tr
	if tr == nil {
		return ErrNotConnected
	}
	if err := tr.Interrupt(); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return tr.Interrupt()
}

// SoftReset restarts the board's interpreter, clearing its heap.
func (s *Session) SoftReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	if err := s.tr.SoftReset(); err != nil {
		s.dropLocked(err)
		return err
	}
	return nil
}

// MarkDisconnected drops the connection state without touching the
// board, for operations that knowingly reset or detach it.
func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeQuietLocked()
}

// ensureLocked connects if necessary, retrying with exponential backoff
// so a briefly unplugged board reconnects transparently.
func (s *Session) ensureLocked(ctx context.Context) error {
	if s.connected {
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error {
		if err := s.connectLocked(ctx); err != nil {
			s.log.Debug().Err(err).Msg("connect attempt failed")
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

func (s *Session) connectLocked(ctx context.Context) error {
	port := s.port
	if port == "" || port == "auto" {
		detected, err := Autodetect()
		if err != nil {
			return err
		}
		port = detected
	}

	pl, err := lock.ForPort(port)
	if err != nil {
		return err
	}
	if err := pl.Acquire(); err != nil {
		return err
	}

	conn, err := s.open(port, s.baud)
	if err != nil {
		pl.Release()
		return err
	}

	tr := NewTransport(conn)
	if err := tr.EnterRawREPL(false); err != nil {
		conn.Close()
		pl.Release()
		return err
	}

	s.conn = conn
	s.tr = tr
	s.portLock = pl
	s.resolved = port
	s.connected = true

	// Board clocks drift or start at the epoch; sync once per connect so
	// file mtimes written by %rsync are meaningful.
	if err := s.syncTimeLocked(ctx); err != nil {
		s.log.Warn().Err(err).Msg("RTC sync failed")
	}
	if err := s.probeBoardLocked(ctx); err != nil {
		s.log.Warn().Err(err).Msg("board info probe failed")
	}

	s.log.Info().Str("port", port).Int("baud", s.baud).
		Str("board", s.board.Machine).Msg("board connected")
	return nil
}

// dropLocked tears down a connection after a transport failure.
func (s *Session) dropLocked(cause error) {
	s.log.Warn().Err(cause).Str("port", s.resolved).Msg("board connection lost")
	s.closeQuietLocked()
}

// closeLocked is the orderly teardown: leave raw REPL, then close.
func (s *Session) closeLocked() {
	if s.tr != nil {
		if err := s.tr.ExitRawREPL(); err != nil {
			s.log.Debug().Err(err).Msg("exit raw REPL failed")
		}
	}
	s.closeQuietLocked()
}

func (s *Session) closeQuietLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.portLock != nil {
		s.portLock.Release()
		s.portLock = nil
	}
	s.tr = nil
	s.connected = false
}

// execLocked runs code while already holding the session lock.
func (s *Session) execLocked(ctx context.Context, code string, consumer func([]byte)) error {
	errOut, err := s.tr.Exec(ctx, []byte(code), consumer)
	if err != nil {
		s.dropLocked(err)
		return err
	}
	if tb := strings.TrimSpace(string(errOut)); tb != "" {
		return &TracebackError{Traceback: tb}
	}
	return nil
}

func (s *Session) evalLocked(ctx context.Context, code string) (string, error) {
	var out strings.Builder
	err := s.execLocked(ctx, code, func(b []byte) { out.Write(b) })
	return out.String(), err
}

// syncTimeLocked sets the board RTC from the host clock.
func (s *Session) syncTimeLocked(ctx context.Context) error {
	return s.execLocked(ctx, rtcSetSnippet(s.clock()), nil)
}

// probeBoardLocked caches interpreter and hardware identification.
func (s *Session) probeBoardLocked(ctx context.Context) error {
	out, err := s.evalLocked(ctx, boardInfoSnippet)
	if err != nil {
		return err
	}
	var info BoardInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &info); err != nil {
		return fmt.Errorf("parse board info: %w", err)
	}
	s.board = info
	return nil
}
