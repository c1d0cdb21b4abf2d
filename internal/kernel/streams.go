package kernel

import (
	"encoding/json"
	"strings"
	"sync"
)

// streamWriter publishes everything written to it as iopub stream
// messages, parented to the execute_request currently being served.
// The magics hold it for the whole session; the parent is swapped per
// request.
type streamWriter struct {
	k    *Kernel
	name string // "stdout" or "stderr"

	mu     sync.Mutex
	parent json.RawMessage
}

func newStreamWriter(k *Kernel, name string) *streamWriter {
	return &streamWriter{k: k, name: name}
}

// SetParent binds subsequent writes to a new request.
func (w *streamWriter) SetParent(parent json.RawMessage) {
	w.mu.Lock()
	w.parent = parent
	w.mu.Unlock()
}

// Write publishes one stream message. Undecodable bytes are replaced,
// never dropped: binary garbage from a crashing board is still evidence
// the user should see.
func (w *streamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	parent := w.parent
	w.mu.Unlock()

	w.k.publish("stream", parent, map[string]any{"name": w.name, "text": validText(string(p))})
	return len(p), nil
}

func validText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
