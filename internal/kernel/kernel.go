// Package kernel implements the Jupyter kernel: the message loops on
// the shell and control sockets and the handlers behind them.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cameronsjo/dinghy/internal/config"
	"github.com/cameronsjo/dinghy/internal/history"
	"github.com/cameronsjo/dinghy/internal/log"
	"github.com/cameronsjo/dinghy/internal/magic"
	"github.com/cameronsjo/dinghy/internal/protocol"
)

// ErrRestart is returned by Run when the front-end asked for a restart;
// the caller tears the kernel down and runs a fresh one in place.
var ErrRestart = errors.New("restart requested")

// Kernel serves one Jupyter session over an already-parsed connection
// file. The device session and history store are owned by the caller so
// they survive in-place restarts.
type Kernel struct {
	version string
	cfg     *config.Config
	info    *protocol.ConnectionInfo

	dev  magic.Device
	hist *history.Store // nil: run without history
	mip  magic.PackageInstaller

	sessionID  string
	sessionNum int

	sockets *protocol.Sockets
	mctx    *magic.Context
	stdout  *streamWriter
	stderr  *streamWriter

	// execMu serializes executions; control stays responsive meanwhile.
	execMu    sync.Mutex
	execCount int

	// dirCache memoizes device dir() lookups for completion.
	dirCache *cache.Cache

	stop        context.CancelFunc
	stopping    atomic.Bool
	restart     atomic.Bool
	histBroken  atomic.Bool
	log         zerolog.Logger
}

// New assembles a kernel for one session.
func New(version string, cfg *config.Config, info *protocol.ConnectionInfo, dev magic.Device, hist *history.Store, mip magic.PackageInstaller) *Kernel {
	return &Kernel{
		version:   version,
		cfg:       cfg,
		info:      info,
		dev:       dev,
		hist:      hist,
		mip:       mip,
		sessionID: uuid.NewString(),
		dirCache:  cache.New(30*time.Second, time.Minute),
		log:       log.WithComponent("kernel"),
	}
}

// Run binds the sockets and serves until shutdown. Returns ErrRestart
// when the front-end requested a restart instead of a shutdown.
func (k *Kernel) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	k.stop = cancel

	sockets, err := protocol.Bind(ctx, k.info)
	if err != nil {
		return err
	}
	k.sockets = sockets

	k.stdout = newStreamWriter(k, "stdout")
	k.stderr = newStreamWriter(k, "stderr")
	k.mctx = magic.NewContext(k.dev, k.cfg, k.stdout, k.stderr)
	k.mctx.Mip = k.mip

	if k.hist != nil {
		num, err := k.hist.BeginSession(ctx, k.sessionID)
		if err != nil {
			k.log.Warn().Err(err).Msg("history unavailable, continuing without it")
			k.hist = nil
		} else {
			k.sessionNum = num
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.serve(ctx, sockets.Shell, "shell") })
	g.Go(func() error { return k.serve(ctx, sockets.Control, "control") })
	g.Go(func() error {
		err := sockets.HeartbeatLoop()
		if k.stopping.Load() || ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// Closing the sockets is what unblocks the recv loops.
		<-ctx.Done()
		k.stopping.Store(true)
		return sockets.Close()
	})

	err = g.Wait()
	if k.restart.Load() {
		return ErrRestart
	}
	return err
}

// serve reads and dispatches messages from one ROUTER socket.
func (k *Kernel) serve(ctx context.Context, sock zmq4.Socket, channel string) error {
	for {
		msg, err := k.sockets.Recv(sock)
		if err != nil {
			if k.stopping.Load() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		k.dispatch(ctx, sock, msg, channel)
	}
}

// dispatch brackets every request with busy/idle status bound to it.
func (k *Kernel) dispatch(ctx context.Context, sock zmq4.Socket, msg *protocol.Message, channel string) {
	parent := msg.RawHeader()
	k.publish("status", parent, map[string]any{"execution_state": "busy"})
	defer k.publish("status", parent, map[string]any{"execution_state": "idle"})

	k.log.Debug().Str("channel", channel).Str("msg_type", msg.Header.MsgType).Msg("request")

	switch msg.Header.MsgType {
	case "kernel_info_request":
		k.reply(sock, msg, "kernel_info_reply", k.kernelInfoContent())
	case "execute_request":
		k.handleExecute(ctx, sock, msg)
	case "complete_request":
		k.handleComplete(ctx, sock, msg)
	case "inspect_request":
		k.handleInspect(ctx, sock, msg)
	case "is_complete_request":
		// No reliable completeness check without a device-side parser;
		// front-ends fall back to their own heuristics.
		k.reply(sock, msg, "is_complete_reply", map[string]any{"status": "unknown"})
	case "history_request":
		k.handleHistory(ctx, sock, msg)
	case "comm_info_request":
		k.reply(sock, msg, "comm_info_reply", map[string]any{"status": "ok", "comms": map[string]any{}})
	case "interrupt_request":
		k.mctx.Interrupt()
		k.reply(sock, msg, "interrupt_reply", map[string]any{"status": "ok"})
	case "shutdown_request":
		k.handleShutdown(sock, msg)
	default:
		k.log.Debug().Str("msg_type", msg.Header.MsgType).Msg("unhandled request")
	}
}

// reply sends a response on the request's socket, carrying its routing
// identities and parented to it.
func (k *Kernel) reply(sock zmq4.Socket, req *protocol.Message, msgType string, content any) {
	m, err := protocol.NewMessage(k.sessionID, msgType, req.RawHeader(), content)
	if err != nil {
		k.log.Error().Err(err).Str("msg_type", msgType).Msg("build reply")
		return
	}
	m.Identities = req.Identities
	if err := k.sockets.Send(sock, m); err != nil {
		k.log.Error().Err(err).Str("msg_type", msgType).Msg("send reply")
	}
}

// publish broadcasts on iopub, parented to the triggering request.
func (k *Kernel) publish(msgType string, parent json.RawMessage, content any) {
	m, err := protocol.NewMessage(k.sessionID, msgType, parent, content)
	if err != nil {
		k.log.Error().Err(err).Str("msg_type", msgType).Msg("build broadcast")
		return
	}
	if err := k.sockets.Publish(m); err != nil {
		k.log.Error().Err(err).Str("msg_type", msgType).Msg("publish")
	}
}

func (k *Kernel) handleShutdown(sock zmq4.Socket, msg *protocol.Message) {
	var content struct {
		Restart bool `json:"restart"`
	}
	_ = json.Unmarshal(msg.Content, &content)

	k.reply(sock, msg, "shutdown_reply", map[string]any{"status": "ok", "restart": content.Restart})

	// Leave the board in friendly-REPL mode for whoever opens it next.
	k.dev.Disconnect()
	k.restart.Store(content.Restart)
	k.stopping.Store(true)
	k.stop()
}
