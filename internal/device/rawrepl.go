package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/cameronsjo/dinghy/internal/log"
)

// Conn is the subset of a serial port the transport needs. Declaring the
// interface on the consumer side lets tests substitute a scripted board
// for real hardware.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Verify the real serial port satisfies Conn.
var _ Conn = (serial.Port)(nil)

const (
	ctrlA = 0x01 // enter raw REPL
	ctrlB = 0x02 // exit raw REPL
	ctrlC = 0x03 // interrupt
	ctrlD = 0x04 // raw-REPL EOT / soft reset
	ctrlE = 0x05 // raw-paste probe
)

var rawBanner = []byte("raw REPL; CTRL-B to exit\r\n>")

// promptTimeout bounds every protocol exchange where the board is
// expected to answer immediately (banners, OK acks, flow-control bytes).
// User code output is never subject to it.
const promptTimeout = 5 * time.Second

// pollInterval is the serial read timeout used to poll for data.
const pollInterval = 50 * time.Millisecond

// Transport drives the MicroPython raw-REPL protocol over a serial
// connection: framing, raw-paste flow control, and output streaming.
type Transport struct {
	conn Conn

	// pending holds bytes read past a frame boundary, replayed before
	// the next read from the wire.
	pending []byte

	// rawPasteChecked/rawPaste cache the one-time raw-paste probe result.
	rawPasteChecked bool
	rawPaste        bool

	inRaw bool
}

// NewTransport wraps an open serial connection.
func NewTransport(conn Conn) *Transport {
	return &Transport{conn: conn}
}

// EnterRawREPL interrupts whatever the board is doing and switches it
// into raw-REPL mode. With softReset the interpreter is restarted first,
// clearing the heap; attaching to a running board must pass false so
// existing state survives.
func (t *Transport) EnterRawREPL(softReset bool) error {
	// Break out of any running program.
	if _, err := t.conn.Write([]byte{'\r', ctrlC, ctrlC}); err != nil {
		return fmt.Errorf("interrupt board: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	t.pending = nil
	if err := t.conn.ResetInputBuffer(); err != nil {
		return fmt.Errorf("drain input: %w", err)
	}

	if _, err := t.conn.Write([]byte{'\r', ctrlA}); err != nil {
		return fmt.Errorf("enter raw REPL: %w", err)
	}
	if _, err := t.readUntil(rawBanner, promptTimeout, nil); err != nil {
		return fmt.Errorf("raw REPL banner: %w", err)
	}

	if softReset {
		if err := t.SoftReset(); err != nil {
			return err
		}
	}

	t.inRaw = true
	return nil
}

// ExitRawREPL restores the friendly REPL prompt.
func (t *Transport) ExitRawREPL() error {
	t.inRaw = false
	if _, err := t.conn.Write([]byte{'\r', ctrlB}); err != nil {
		return fmt.Errorf("exit raw REPL: %w", err)
	}
	return nil
}

// SoftReset restarts the interpreter from the raw-REPL prompt and waits
// for it to come back up in raw mode.
func (t *Transport) SoftReset() error {
	if _, err := t.conn.Write([]byte{ctrlD}); err != nil {
		return fmt.Errorf("soft reset: %w", err)
	}
	if _, err := t.readUntil([]byte("soft reboot"), promptTimeout, nil); err != nil {
		return fmt.Errorf("soft reboot banner: %w", err)
	}
	if _, err := t.readUntil(rawBanner, promptTimeout, nil); err != nil {
		return fmt.Errorf("raw REPL banner after reset: %w", err)
	}
	return nil
}

// Interrupt sends Ctrl-C to the board. Safe to call concurrently with a
// running Exec: the interrupt surfaces as a KeyboardInterrupt traceback
// in the execution's stderr segment.
func (t *Transport) Interrupt() error {
	_, err := t.conn.Write([]byte{'\r', ctrlC})
	return err
}

// Exec submits code for execution and streams the board's stdout to
// consumer chunk by chunk as it is produced. It returns the stderr
// segment (the traceback, if any) once the execution finishes.
func (t *Transport) Exec(ctx context.Context, code []byte, consumer func([]byte)) ([]byte, error) {
	if err := t.submit(code); err != nil {
		return nil, err
	}
	return t.follow(ctx, consumer)
}

// submit transfers code to the board without waiting for its output.
// Raw-paste mode with flow control is preferred; boards that do not
// support it get the code in small timed slices.
func (t *Transport) submit(code []byte) error {
	if !t.rawPasteChecked || t.rawPaste {
		ok, err := t.submitRawPaste(code)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	// Plain raw mode: slice the code so the board's input buffer is
	// never overrun, then commit with EOT and wait for the OK ack.
	for off := 0; off < len(code); off += 256 {
		end := off + 256
		if end > len(code) {
			end = len(code)
		}
		if _, err := t.conn.Write(code[off:end]); err != nil {
			return fmt.Errorf("write code: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := t.conn.Write([]byte{ctrlD}); err != nil {
		return fmt.Errorf("commit code: %w", err)
	}
	if _, err := t.readUntil([]byte("OK"), promptTimeout, nil); err != nil {
		return fmt.Errorf("board did not accept code: %w", err)
	}
	return nil
}

// submitRawPaste probes for raw-paste mode and, when supported, submits
// the code under the board's flow control. Returns ok=false when the
// board does not speak raw-paste; the caller falls back to plain writes.
func (t *Transport) submitRawPaste(code []byte) (bool, error) {
	if _, err := t.conn.Write([]byte{ctrlE, 'A', ctrlA}); err != nil {
		return false, fmt.Errorf("raw-paste probe: %w", err)
	}
	reply, err := t.readN(2, promptTimeout)
	if err != nil {
		return false, fmt.Errorf("raw-paste probe reply: %w", err)
	}

	switch {
	case bytes.Equal(reply, []byte{'R', 0x01}):
		t.rawPasteChecked, t.rawPaste = true, true
		return true, t.rawPasteWrite(code)
	case bytes.Equal(reply, []byte{'R', 0x00}):
		// Understood but disabled on this board.
		t.rawPasteChecked, t.rawPaste = true, false
		return false, nil
	default:
		// Old firmware echoes the probe as text; resync on the prompt.
		t.rawPasteChecked, t.rawPaste = true, false
		if _, err := t.readUntil([]byte("w REPL; CTRL-B to exit\r\n>"), promptTimeout, nil); err != nil {
			return false, fmt.Errorf("resync after raw-paste probe: %w", err)
		}
		return false, nil
	}
}

// rawPasteWrite streams code under the window protocol: the board grants
// an initial window and grows it with 0x01 bytes as it drains its
// buffer; 0x04 from the board aborts the transfer.
func (t *Transport) rawPasteWrite(code []byte) error {
	hdr, err := t.readN(2, promptTimeout)
	if err != nil {
		return fmt.Errorf("raw-paste window size: %w", err)
	}
	increment := int(hdr[0]) | int(hdr[1])<<8
	if increment == 0 {
		return fmt.Errorf("raw-paste window size is zero")
	}
	window := increment

	for off := 0; off < len(code); {
		for window == 0 {
			b, err := t.readN(1, promptTimeout)
			if err != nil {
				return fmt.Errorf("raw-paste flow control: %w", err)
			}
			switch b[0] {
			case ctrlA:
				window += increment
			case ctrlD:
				t.conn.Write([]byte{ctrlD})
				return ErrAborted
			}
		}
		n := window
		if rem := len(code) - off; n > rem {
			n = rem
		}
		if _, err := t.conn.Write(code[off : off+n]); err != nil {
			return fmt.Errorf("raw-paste write: %w", err)
		}
		off += n
		window -= n
	}

	if _, err := t.conn.Write([]byte{ctrlD}); err != nil {
		return fmt.Errorf("raw-paste commit: %w", err)
	}
	if _, err := t.readUntil([]byte{ctrlD}, promptTimeout, nil); err != nil {
		return fmt.Errorf("raw-paste ack: %w", err)
	}
	return nil
}

// follow consumes the two EOT-delimited output segments of an execution.
// stdout is streamed to consumer as it arrives and is not bounded by any
// timeout (user code may legitimately run forever); cancellation of ctx
// interrupts the board and keeps draining until it yields.
func (t *Transport) follow(ctx context.Context, consumer func([]byte)) ([]byte, error) {
	interrupted := false
	for {
		done, err := t.streamChunk(consumer)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if ctx.Err() != nil && !interrupted {
			interrupted = true
			if err := t.Interrupt(); err != nil {
				return nil, err
			}
		}
	}

	errOut, err := t.readUntil([]byte{ctrlD}, promptTimeout, nil)
	if err != nil {
		return nil, fmt.Errorf("stderr segment: %w", err)
	}
	if _, err := t.readUntil([]byte{'>'}, promptTimeout, nil); err != nil {
		return nil, fmt.Errorf("raw prompt: %w", err)
	}
	return errOut, nil
}

// streamChunk forwards one chunk of stdout to consumer. It reports
// done=true once the EOT terminating the stdout segment is seen; any
// bytes past the EOT are kept for the stderr segment.
func (t *Transport) streamChunk(consumer func([]byte)) (bool, error) {
	chunk, err := t.readSome(pollInterval)
	if err != nil {
		return false, err
	}
	if len(chunk) == 0 {
		return false, nil
	}
	if i := bytes.IndexByte(chunk, ctrlD); i >= 0 {
		if i > 0 && consumer != nil {
			consumer(chunk[:i])
		}
		t.pending = append(t.pending, chunk[i+1:]...)
		return true, nil
	}
	if consumer != nil {
		consumer(chunk)
	}
	return false, nil
}

// readSome returns whatever bytes are available, waiting at most wait
// for the first of them. A zero-length return means nothing arrived.
func (t *Transport) readSome(wait time.Duration) ([]byte, error) {
	if len(t.pending) > 0 {
		chunk := t.pending
		t.pending = nil
		return chunk, nil
	}
	if err := t.conn.SetReadTimeout(wait); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	buf := make([]byte, 256)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from board: %w", err)
	}
	return buf[:n], nil
}

// readN reads exactly n bytes. The timeout is a quiet-period bound: it
// resets whenever data arrives.
func (t *Transport) readN(n int, timeout time.Duration) ([]byte, error) {
	var data []byte
	last := time.Now()
	for len(data) < n {
		chunk, err := t.readSome(pollInterval)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			if time.Since(last) > timeout {
				return nil, ErrTimeout
			}
			continue
		}
		last = time.Now()
		data = append(data, chunk...)
	}
	t.pending = append(data[n:], t.pending...)
	return data[:n], nil
}

// readUntil reads until ending is seen, consuming it. Bytes past the
// ending are kept for subsequent reads. consumer, when set, receives the
// data incrementally. The timeout is a quiet-period bound.
func (t *Transport) readUntil(ending []byte, timeout time.Duration, consumer func([]byte)) ([]byte, error) {
	var data []byte
	emitted := 0
	last := time.Now()
	for {
		if i := bytes.Index(data, ending); i >= 0 {
			rest := make([]byte, len(data)-i-len(ending))
			copy(rest, data[i+len(ending):])
			t.pending = append(rest, t.pending...)
			if consumer != nil && i > emitted {
				consumer(data[emitted:i])
			}
			return data[:i], nil
		}
		if consumer != nil {
			// Emit everything that can no longer be part of the ending.
			if safe := len(data) - len(ending) + 1; safe > emitted {
				consumer(data[emitted:safe])
				emitted = safe
			}
		}

		chunk, err := t.readSome(pollInterval)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			if timeout > 0 && time.Since(last) > timeout {
				logger := log.WithComponent("transport")
				logger.Warn().
					Bytes("ending", ending).
					Msg("timed out waiting for board reply")
				return nil, ErrTimeout
			}
			continue
		}
		last = time.Now()
		data = append(data, chunk...)
	}
}
