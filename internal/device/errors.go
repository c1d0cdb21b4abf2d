package device

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates no board connection is established.
	ErrNotConnected = errors.New("no board connected")

	// ErrNoPort indicates autodetection found no candidate serial port.
	ErrNoPort = errors.New("no serial port found")

	// ErrTimeout indicates the board stopped responding mid-protocol.
	ErrTimeout = errors.New("timed out waiting for the board")

	// ErrAborted indicates the board aborted a raw-paste transfer.
	ErrAborted = errors.New("board aborted the transfer")
)

// TracebackError carries a Python traceback produced on the board.
// It is reported to the notebook's stderr stream, never treated as a
// kernel failure.
type TracebackError struct {
	Traceback string
}

func (e *TracebackError) Error() string {
	return fmt.Sprintf("board raised an exception:\n%s", e.Traceback)
}
