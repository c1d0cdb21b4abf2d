package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is one row of a recursive tree listing, on either side of the
// serial link. Level counts directory depth below the listed root; the
// root itself is level -1 and not emitted.
type Entry struct {
	Dir   bool
	Level int
	Path  string // relative to the listed root, no leading slash
	Mtime int64  // unix seconds
	Size  int64
}

// FSUsage summarizes a board filesystem from statvfs.
type FSUsage struct {
	BlockSize  int64
	Blocks     int64
	FreeBlocks int64
}

// Total returns the filesystem size in bytes.
func (u FSUsage) Total() int64 { return u.BlockSize * u.Blocks }

// Free returns the free space in bytes.
func (u FSUsage) Free() int64 { return u.BlockSize * u.FreeBlocks }

// pyStr renders s as a Python string literal. Go's quoting rules are a
// subset of Python's for the escapes strconv produces.
func pyStr(s string) string {
	return strconv.Quote(s)
}

const boardInfoSnippet = `import sys, json
_m = ''
try:
    import os
    _m = os.uname().machine
except Exception:
    pass
_i = sys.implementation
print(json.dumps({'name': _i.name, 'version': '.'.join([str(_v) for _v in _i.version[:3]]), 'platform': sys.platform, 'machine': _m}), end='')`

// rtcSetSnippet sets the board RTC to t. machine.RTC counts weekdays
// from Monday=0 while Go counts from Sunday=0.
func rtcSetSnippet(t time.Time) string {
	return fmt.Sprintf("import machine\nmachine.RTC().datetime((%d, %d, %d, %d, %d, %d, %d, 0))",
		t.Year(), int(t.Month()), t.Day(), (int(t.Weekday())+6)%7,
		t.Hour(), t.Minute(), t.Second())
}

const localtimeSnippet = "import time\nprint(tuple(time.localtime()), end='')"

func treeSnippet(path string) string {
	return fmt.Sprintf(`import os, json
def _w(p, lv, fp):
    st = os.stat(p)
    if st[0] & 0x4000:
        if lv >= 0:
            print(json.dumps(["D", lv, fp, st[8], 0]))
        for n in sorted(os.listdir(p)):
            _w(p + "/" + n, lv + 1, fp + "/" + n)
    else:
        print(json.dumps(["F", lv, fp, st[8], st[6]]))
_w(%s, -1, "")`, pyStr(path))
}

func rmTreeSnippet(path string) string {
	return fmt.Sprintf(`import os
def _rm(p):
    try:
        st = os.stat(p)
    except OSError:
        return
    if st[0] & 0x4000:
        for n in os.listdir(p):
            _rm(p + "/" + n)
        os.rmdir(p)
    else:
        os.remove(p)
_rm(%s)`, pyStr(path))
}

// ListTree returns a recursive listing rooted at path, directories
// before their contents, names sorted.
func (s *Session) ListTree(ctx context.Context, path string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	out, err := s.evalLocked(ctx, treeSnippet(path))
	if err != nil {
		return nil, err
	}
	return parseTree(out)
}

func parseTree(out string) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row []any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("parse listing row %q: %w", line, err)
		}
		if len(row) != 5 {
			return nil, fmt.Errorf("malformed listing row %q", line)
		}
		kind, _ := row[0].(string)
		level, _ := row[1].(float64)
		path, _ := row[2].(string)
		mtime, _ := row[3].(float64)
		size, _ := row[4].(float64)
		entries = append(entries, Entry{
			Dir:   kind == "D",
			Level: int(level),
			Path:  strings.TrimPrefix(path, "/"),
			Mtime: int64(mtime),
			Size:  int64(size),
		})
	}
	return entries, nil
}

// FilePut writes data to a file on the board, transferred in base64
// frames so the content never collides with raw-REPL framing bytes.
func (s *Session) FilePut(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}

	if err := s.execLocked(ctx, fmt.Sprintf("import binascii\n_f = open(%s, 'wb')", pyStr(path)), nil); err != nil {
		return err
	}
	const frame = 512
	for off := 0; off < len(data); off += frame {
		end := off + frame
		if end > len(data) {
			end = len(data)
		}
		b64 := base64.StdEncoding.EncodeToString(data[off:end])
		if err := s.execLocked(ctx, fmt.Sprintf("_f.write(binascii.a2b_base64(%s))", pyStr(b64)), nil); err != nil {
			return err
		}
	}
	return s.execLocked(ctx, "_f.close()", nil)
}

// FileGet reads a file from the board.
func (s *Session) FileGet(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}

	snippet := fmt.Sprintf(`import binascii
with open(%s, 'rb') as _f:
    while True:
        _b = _f.read(256)
        if not _b:
            break
        print(binascii.b2a_base64(_b).decode().rstrip())`, pyStr(path))
	out, err := s.evalLocked(ctx, snippet)
	if err != nil {
		return nil, err
	}

	var data []byte
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunk, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("decode file frame: %w", err)
		}
		data = append(data, chunk...)
	}
	return data, nil
}

// Cat streams a board file's text to consumer.
func (s *Session) Cat(ctx context.Context, path string, consumer func([]byte)) error {
	return s.Exec(ctx, fmt.Sprintf("print(open(%s).read(), end='')", pyStr(path)), consumer)
}

// RemoveAll deletes a board file or directory tree. Missing paths are
// not an error.
func (s *Session) RemoveAll(ctx context.Context, path string) error {
	return s.Exec(ctx, rmTreeSnippet(path), nil)
}

// Remove deletes a single board file.
func (s *Session) Remove(ctx context.Context, path string) error {
	return s.Exec(ctx, fmt.Sprintf("import os\nos.remove(%s)", pyStr(path)), nil)
}

// Mkdir creates a directory on the board.
func (s *Session) Mkdir(ctx context.Context, path string) error {
	return s.Exec(ctx, fmt.Sprintf("import os\nos.mkdir(%s)", pyStr(path)), nil)
}

// Rmdir removes an empty directory on the board.
func (s *Session) Rmdir(ctx context.Context, path string) error {
	return s.Exec(ctx, fmt.Sprintf("import os\nos.rmdir(%s)", pyStr(path)), nil)
}

// Touch creates an empty file on the board, or updates its mtime.
func (s *Session) Touch(ctx context.Context, path string) error {
	return s.Exec(ctx, fmt.Sprintf("open(%s, 'a').close()", pyStr(path)), nil)
}

// Statvfs reports usage of the filesystem holding path.
func (s *Session) Statvfs(ctx context.Context, path string) (FSUsage, error) {
	out, err := s.Eval(ctx, fmt.Sprintf("import os, json\n_s = os.statvfs(%s)\nprint(json.dumps([_s[0], _s[2], _s[3]]), end='')", pyStr(path)))
	if err != nil {
		return FSUsage{}, err
	}
	var row [3]int64
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &row); err != nil {
		return FSUsage{}, fmt.Errorf("parse statvfs: %w", err)
	}
	return FSUsage{BlockSize: row[0], Blocks: row[1], FreeBlocks: row[2]}, nil
}

// UniqueID returns the board's machine.unique_id() as hex.
func (s *Session) UniqueID(ctx context.Context) (string, error) {
	out, err := s.Eval(ctx, "import machine, binascii\nprint(binascii.hexlify(machine.unique_id()).decode(), end='')")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RTCNow reads the board clock. Boards count time from varying epochs,
// so the localtime tuple is fetched and interpreted on the host.
func (s *Session) RTCNow(ctx context.Context) (time.Time, error) {
	out, err := s.Eval(ctx, localtimeSnippet)
	if err != nil {
		return time.Time{}, err
	}
	fields, err := parseTuple(out)
	if err != nil {
		return time.Time{}, err
	}
	// (year, month, mday, hour, minute, second, weekday, yearday);
	// some ports omit the trailing fields.
	if len(fields) < 6 {
		return time.Time{}, fmt.Errorf("short localtime tuple %q", strings.TrimSpace(out))
	}
	return time.Date(fields[0], time.Month(fields[1]), fields[2],
		fields[3], fields[4], fields[5], 0, time.Local), nil
}

// SyncRTC sets the board clock from the host clock.
func (s *Session) SyncRTC(ctx context.Context) error {
	return s.Exec(ctx, rtcSetSnippet(s.clock()), nil)
}

// ExecDetached submits code without waiting for any output and drops
// the connection. Used for operations that take the board away, like
// machine.reset().
func (s *Session) ExecDetached(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	err := s.tr.submit([]byte(code))
	s.closeQuietLocked()
	return err
}

func parseTuple(out string) ([]int, error) {
	text := strings.TrimSpace(out)
	text = strings.Trim(text, "()")
	var fields []int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse tuple %q: %w", strings.TrimSpace(out), err)
		}
		fields = append(fields, n)
	}
	return fields, nil
}
