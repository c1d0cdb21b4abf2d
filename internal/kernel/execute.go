package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/cameronsjo/dinghy/internal/history"
	"github.com/cameronsjo/dinghy/internal/magic"
	"github.com/cameronsjo/dinghy/internal/protocol"
)

// executeRequest mirrors the protocol's execute_request content.
type executeRequest struct {
	Code         string `json:"code"`
	Silent       bool   `json:"silent"`
	StoreHistory *bool  `json:"store_history"`
	AllowStdin   bool   `json:"allow_stdin"`
}

func (r *executeRequest) storeHistory() bool {
	if r.StoreHistory == nil {
		return !r.Silent
	}
	return *r.StoreHistory
}

// handleExecute runs one cell. Device tracebacks and magic errors are
// streamed to stderr; the reply is ok regardless, so a broken cell
// never wedges the front-end's execution queue.
func (k *Kernel) handleExecute(ctx context.Context, sock zmq4.Socket, msg *protocol.Message) {
	var req executeRequest
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		k.log.Warn().Err(err).Msg("malformed execute_request")
		return
	}

	k.execMu.Lock()
	defer k.execMu.Unlock()

	parent := msg.RawHeader()
	counted := !req.Silent && req.storeHistory()
	count := k.execCount
	if counted {
		k.execCount++
		count = k.execCount
	}

	if !req.Silent {
		k.publish("execute_input", parent, map[string]any{
			"code":            req.Code,
			"execution_count": count,
		})
	}
	if counted && k.hist != nil {
		if err := k.hist.Append(ctx, k.sessionNum, count, req.Code); err != nil {
			// Warn once; history stays best-effort.
			if !k.histBroken.Swap(true) {
				k.log.Warn().Err(err).Msg("recording history failed, disabling it")
			}
			k.hist = nil
		}
	}

	k.stdout.SetParent(parent)
	k.stderr.SetParent(parent)
	magic.RunCell(ctx, k.mctx, req.Code)

	k.reply(sock, msg, "execute_reply", map[string]any{
		"status":           "ok",
		"execution_count":  count,
		"payload":          []any{},
		"user_expressions": map[string]any{},
	})
}

// kernelInfoContent builds the kernel_info_reply. The language version
// comes from the board once one has been seen; before that a
// placeholder stands in, since connecting just to answer kernel_info
// would violate lazy connection.
func (k *Kernel) kernelInfoContent() map[string]any {
	langVersion := "unknown"
	banner := "dinghy - MicroPython over mpremote-style serial, in a notebook"
	if b := k.dev.Board(); b.Version != "" {
		langVersion = b.Version
		banner += fmt.Sprintf("\nBoard: %s (%s %s on %s)", b.Machine, b.Name, b.Version, b.Platform)
	}
	return map[string]any{
		"status":                 "ok",
		"protocol_version":       protocol.Version,
		"implementation":         "dinghy",
		"implementation_version": k.version,
		"language_info": map[string]any{
			"name":               "micropython",
			"version":            langVersion,
			"mimetype":           "text/x-python",
			"file_extension":     ".py",
			"pygments_lexer":     "python3",
			"codemirror_mode":    "python",
			"nbconvert_exporter": "script",
		},
		"banner": banner,
		"help_links": []map[string]string{
			{"text": "MicroPython docs", "url": "https://docs.micropython.org"},
		},
	}
}

// handleHistory serves history_request from the SQLite store. Outputs
// are never stored, so the output flag only changes the row shape.
func (k *Kernel) handleHistory(ctx context.Context, sock zmq4.Socket, msg *protocol.Message) {
	var req struct {
		HistAccessType string `json:"hist_access_type"`
		Output         bool   `json:"output"`
		Session        int    `json:"session"`
		Start          int    `json:"start"`
		Stop           int    `json:"stop"`
		N              int    `json:"n"`
		Pattern        string `json:"pattern"`
	}
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		k.log.Warn().Err(err).Msg("malformed history_request")
		return
	}

	var entries []historyEntry
	if k.hist != nil {
		var err error
		entries, err = k.queryHistory(ctx, req.HistAccessType, req.Session, req.Start, req.Stop, req.N, req.Pattern)
		if err != nil {
			k.log.Warn().Err(err).Msg("history query failed")
		}
	}

	rows := make([]any, 0, len(entries))
	for _, e := range entries {
		if req.Output {
			rows = append(rows, []any{e.Session, e.Line, []any{e.Source, nil}})
		} else {
			rows = append(rows, []any{e.Session, e.Line, e.Source})
		}
	}
	k.reply(sock, msg, "history_reply", map[string]any{"status": "ok", "history": rows})
}

type historyEntry struct {
	Session int
	Line    int
	Source  string
}

func (k *Kernel) queryHistory(ctx context.Context, access string, session, start, stop, n int, pattern string) ([]historyEntry, error) {
	switch access {
	case "tail":
		if n <= 0 {
			n = 10
		}
		return toEntries(k.hist.Tail(ctx, n))
	case "range":
		return toEntries(k.hist.Range(ctx, session, k.sessionNum, start, stop))
	case "search":
		if n <= 0 {
			n = 100
		}
		return toEntries(k.hist.Search(ctx, pattern, n))
	default:
		return nil, fmt.Errorf("unsupported hist_access_type %q", access)
	}
}

func toEntries(es []history.Entry, err error) ([]historyEntry, error) {
	if err != nil {
		return nil, err
	}
	out := make([]historyEntry, len(es))
	for i, e := range es {
		out[i] = historyEntry{Session: e.Session, Line: e.Line, Source: e.Source}
	}
	return out, nil
}
