package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/cameronsjo/dinghy/internal/log"
)

// Sockets holds the five kernel-side ZeroMQ sockets of a Jupyter
// session, all bound to the endpoints named in the connection file.
type Sockets struct {
	Shell     zmq4.Socket // ROUTER: requests from the front-end
	Control   zmq4.Socket // ROUTER: interrupt/shutdown, never blocked by shell
	Stdin     zmq4.Socket // ROUTER: bound but unused (allow_stdin is false)
	IOPub     zmq4.Socket // PUB: broadcasts (streams, status)
	Heartbeat zmq4.Socket // REP: byte echo

	signer  *Signer
	iopubMu sync.Mutex
	log     zerolog.Logger
}

// Bind creates and binds all sockets. On failure everything already
// bound is closed again.
func Bind(ctx context.Context, info *ConnectionInfo) (*Sockets, error) {
	s := &Sockets{
		Shell:     zmq4.NewRouter(ctx),
		Control:   zmq4.NewRouter(ctx),
		Stdin:     zmq4.NewRouter(ctx),
		IOPub:     zmq4.NewPub(ctx),
		Heartbeat: zmq4.NewRep(ctx),
		signer:    NewSigner(info.Key),
		log:       log.WithComponent("protocol"),
	}

	bindings := []struct {
		sock zmq4.Socket
		port int
		name string
	}{
		{s.Shell, info.ShellPort, "shell"},
		{s.Control, info.ControlPort, "control"},
		{s.Stdin, info.StdinPort, "stdin"},
		{s.IOPub, info.IOPubPort, "iopub"},
		{s.Heartbeat, info.HBPort, "heartbeat"},
	}
	for _, b := range bindings {
		if err := b.sock.Listen(info.Endpoint(b.port)); err != nil {
			s.Close()
			return nil, fmt.Errorf("bind %s socket: %w", b.name, err)
		}
	}

	s.log.Info().Str("ip", info.IP).Int("shell", info.ShellPort).
		Int("control", info.ControlPort).Int("iopub", info.IOPubPort).
		Msg("sockets bound")
	return s, nil
}

// Signer returns the signer for this session's key.
func (s *Sockets) Signer() *Signer {
	return s.signer
}

// Close closes all sockets.
func (s *Sockets) Close() error {
	var errs []error
	for _, sock := range []zmq4.Socket{s.Shell, s.Control, s.Stdin, s.IOPub, s.Heartbeat} {
		if sock != nil {
			if err := sock.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Recv reads and verifies the next message on sock. Messages failing
// signature verification are dropped with a warning and the read
// continues; only transport errors terminate it.
func (s *Sockets) Recv(sock zmq4.Socket) (*Message, error) {
	for {
		raw, err := sock.Recv()
		if err != nil {
			return nil, err
		}
		msg, err := Parse(raw.Frames, s.signer)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping invalid message")
			continue
		}
		return msg, nil
	}
}

// Send signs and sends a message on sock.
func (s *Sockets) Send(sock zmq4.Socket, m *Message) error {
	frames, err := m.Frames(s.signer)
	if err != nil {
		return err
	}
	return sock.Send(zmq4.NewMsgFrom(frames...))
}

// Publish broadcasts a message on iopub. Serialized by a mutex: shell
// and control handlers publish concurrently and ZeroMQ sockets are not
// safe for concurrent sends.
func (s *Sockets) Publish(m *Message) error {
	s.iopubMu.Lock()
	defer s.iopubMu.Unlock()
	return s.Send(s.IOPub, m)
}

// HeartbeatLoop echoes heartbeat pings until the socket is closed.
func (s *Sockets) HeartbeatLoop() error {
	for {
		msg, err := s.Heartbeat.Recv()
		if err != nil {
			return err
		}
		if err := s.Heartbeat.Send(msg); err != nil {
			return err
		}
	}
}
