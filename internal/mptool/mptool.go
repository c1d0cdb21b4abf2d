// Package mptool shells out to the external mpremote CLI for the few
// operations it does better than a reimplementation would — package
// installation with mip. The serial port is handed over for the
// duration and the session reconnects lazily afterwards.
package mptool

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/cameronsjo/dinghy/internal/log"
	"github.com/cameronsjo/dinghy/internal/preflight"
)

// Session is the slice of the device session mptool needs: the port to
// hand over, and the hooks to release and drop it.
type Session interface {
	Port() string
	Connected() bool
	Disconnect()
	MarkDisconnected()
}

// Runner wraps the mpremote executable.
type Runner struct {
	session Session
	log     zerolog.Logger

	// run is swappable for tests.
	run func(ctx context.Context, out io.Writer, args ...string) error
}

// New creates a runner bound to the given device session.
func New(session Session) *Runner {
	return &Runner{
		session: session,
		log:     log.WithComponent("mptool"),
		run:     runMpremote,
	}
}

// Available reports whether the mpremote executable is on PATH.
func Available() bool {
	return preflight.IsBinaryAvailable("mpremote")
}

// Install runs `mpremote mip install` against the session's board.
// `resume` keeps mpremote from soft-resetting, preserving interpreter
// state the same way the kernel's own session does.
func (r *Runner) Install(ctx context.Context, pkgs []string, target, index string, noMpy bool, out io.Writer) error {
	if !Available() {
		return fmt.Errorf("mpremote not found on PATH; install it with `pip install mpremote`")
	}

	port := r.session.Port()
	if port == "" || port == "auto" {
		return fmt.Errorf("no board port known yet; run a cell or %%connect first")
	}

	// Hand the serial port over to mpremote.
	wasConnected := r.session.Connected()
	r.session.Disconnect()

	args := []string{"connect", port, "resume", "mip", "install"}
	if target != "" {
		args = append(args, "--target", target)
	}
	if index != "" {
		args = append(args, "--index", index)
	}
	if noMpy {
		args = append(args, "--no-mpy")
	}
	args = append(args, pkgs...)

	r.log.Info().Str("port", port).Strs("packages", pkgs).Msg("running mpremote mip install")
	err := r.run(ctx, out, args...)

	// The next board operation reconnects lazily.
	if wasConnected {
		r.session.MarkDisconnected()
	}
	if err != nil {
		return fmt.Errorf("mpremote mip install: %w", err)
	}
	return nil
}

func runMpremote(ctx context.Context, out io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, "mpremote", args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
