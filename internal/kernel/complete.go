package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-zeromq/zmq4"

	"github.com/cameronsjo/dinghy/internal/protocol"
)

// pythonKeywords and micropythonBuiltins seed completion when the board
// cannot be asked, and supplement it when it can.
var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try",
	"while", "with", "yield",
}

var micropythonBuiltins = []string{
	"abs", "all", "any", "bin", "bool", "bytearray", "bytes", "callable",
	"chr", "classmethod", "dict", "dir", "divmod", "enumerate", "eval",
	"exec", "filter", "float", "getattr", "globals", "hasattr", "hash",
	"help", "hex", "id", "input", "int", "isinstance", "issubclass",
	"iter", "len", "list", "locals", "map", "max", "min", "next",
	"object", "oct", "open", "ord", "pow", "print", "property", "range",
	"repr", "reversed", "round", "set", "setattr", "sorted",
	"staticmethod", "str", "sum", "super", "tuple", "type", "zip",
}

// dottedName guards what ever gets eval'd on the board: plain dotted
// identifiers only, never arbitrary expressions from the cell.
var dottedName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func isTokenRune(r rune) bool {
	return r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// tokenAt scans backwards from pos for the dotted token under the
// cursor and returns it split into object path and final fragment.
func tokenAt(code string, pos int) (obj, frag string, start int) {
	runes := []rune(code)
	if pos > len(runes) {
		pos = len(runes)
	}
	if pos < 0 {
		pos = 0
	}
	begin := pos
	for begin > 0 && isTokenRune(runes[begin-1]) {
		begin--
	}
	token := string(runes[begin:pos])

	if i := strings.LastIndex(token, "."); i >= 0 {
		obj, frag = token[:i], token[i+1:]
	} else {
		frag = token
	}
	return obj, frag, pos - len([]rune(frag))
}

func (k *Kernel) handleComplete(ctx context.Context, sock zmq4.Socket, msg *protocol.Message) {
	var req struct {
		Code      string `json:"code"`
		CursorPos int    `json:"cursor_pos"`
	}
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		k.log.Warn().Err(err).Msg("malformed complete_request")
		return
	}

	obj, frag, start := tokenAt(req.Code, req.CursorPos)

	var names []string
	names = append(names, k.dirNames(ctx, obj)...)
	if obj == "" {
		names = append(names, pythonKeywords...)
		names = append(names, micropythonBuiltins...)
	}

	seen := make(map[string]bool)
	var matches []string
	for _, n := range names {
		if strings.HasPrefix(n, frag) && !seen[n] {
			seen[n] = true
			matches = append(matches, n)
		}
	}
	sort.Strings(matches)

	k.reply(sock, msg, "complete_reply", map[string]any{
		"status":       "ok",
		"matches":      matches,
		"cursor_start": start,
		"cursor_end":   req.CursorPos,
		"metadata":     map[string]any{},
	})
}

// dirNames asks the board for dir(obj), memoized briefly so completing
// through one object does not hammer the serial link. The board is only
// asked when already connected: dialing hardware from a completion
// request would stall typing for seconds.
func (k *Kernel) dirNames(ctx context.Context, obj string) []string {
	if !k.dev.Connected() {
		return nil
	}
	if obj != "" && !dottedName.MatchString(obj) {
		return nil
	}
	if cached, ok := k.dirCache.Get(obj); ok {
		return cached.([]string)
	}

	expr := "dir()"
	if obj != "" {
		expr = "dir(" + obj + ")"
	}
	out, err := k.dev.Eval(ctx, fmt.Sprintf("try:\n    print(','.join(%s), end='')\nexcept Exception:\n    pass", expr))
	if err != nil || strings.TrimSpace(out) == "" {
		return nil
	}

	names := strings.Split(strings.TrimSpace(out), ",")
	k.dirCache.SetDefault(obj, names)
	return names
}

func (k *Kernel) handleInspect(ctx context.Context, sock zmq4.Socket, msg *protocol.Message) {
	var req struct {
		Code      string `json:"code"`
		CursorPos int    `json:"cursor_pos"`
	}
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		k.log.Warn().Err(err).Msg("malformed inspect_request")
		return
	}

	notFound := map[string]any{
		"status": "ok", "found": false,
		"data": map[string]any{}, "metadata": map[string]any{},
	}

	token := tokenUnderCursor(req.Code, req.CursorPos)
	if token == "" || !dottedName.MatchString(token) || !k.dev.Connected() {
		k.reply(sock, msg, "inspect_reply", notFound)
		return
	}

	out, err := k.dev.Eval(ctx, fmt.Sprintf(
		"try:\n    _o = %s\n    print(repr(type(_o)))\n    print(repr(_o)[:1024], end='')\nexcept Exception:\n    pass", token))
	if err != nil || strings.TrimSpace(out) == "" {
		k.reply(sock, msg, "inspect_reply", notFound)
		return
	}

	k.reply(sock, msg, "inspect_reply", map[string]any{
		"status": "ok", "found": true,
		"data":     map[string]any{"text/plain": strings.TrimSpace(out)},
		"metadata": map[string]any{},
	})
}

// tokenUnderCursor extends the cursor position in both directions to
// cover the whole dotted token it sits on.
func tokenUnderCursor(code string, pos int) string {
	runes := []rune(code)
	if pos > len(runes) {
		pos = len(runes)
	}
	if pos < 0 {
		pos = 0
	}
	begin := pos
	for begin > 0 && isTokenRune(runes[begin-1]) {
		begin--
	}
	end := pos
	for end < len(runes) && isTokenRune(runes[end]) {
		end++
	}
	return strings.Trim(string(runes[begin:end]), ".")
}
