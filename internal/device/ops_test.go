package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	t.Run("mixed listing", func(t *testing.T) {
		out := `["D", 0, "/lib", 1700000000, 0]
["F", 1, "/lib/helper.py", 1700000100, 512]
["F", 0, "/main.py", 1700000200, 128]
`
		entries, err := parseTree(out)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Dir: true, Level: 0, Path: "lib", Mtime: 1700000000, Size: 0},
			{Dir: false, Level: 1, Path: "lib/helper.py", Mtime: 1700000100, Size: 512},
			{Dir: false, Level: 0, Path: "main.py", Mtime: 1700000200, Size: 128},
		}, entries)
	})

	t.Run("empty listing", func(t *testing.T) {
		entries, err := parseTree("\n  \n")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("malformed row", func(t *testing.T) {
		_, err := parseTree(`["F", 0]`)
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseTree("Traceback (most recent call last):")
		assert.Error(t, err)
	})
}

func TestParseTuple(t *testing.T) {
	t.Run("full localtime tuple", func(t *testing.T) {
		fields, err := parseTuple("(2024, 1, 2, 3, 4, 5, 1, 2)")
		require.NoError(t, err)
		assert.Equal(t, []int{2024, 1, 2, 3, 4, 5, 1, 2}, fields)
	})

	t.Run("surrounding noise", func(t *testing.T) {
		fields, err := parseTuple("  (1, 2, 3)\r\n")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, fields)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseTuple("(1, banana)")
		assert.Error(t, err)
	})
}

func TestRTCSetSnippet(t *testing.T) {
	// Go counts weekdays from Sunday, machine.RTC from Monday.
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.Local)
	assert.Contains(t, rtcSetSnippet(sunday), "(2024, 1, 7, 6, 12, 0, 0, 0)")

	monday := time.Date(2024, 1, 8, 23, 59, 58, 0, time.Local)
	assert.Contains(t, rtcSetSnippet(monday), "(2024, 1, 8, 0, 23, 59, 58, 0)")
}

func TestPyStr(t *testing.T) {
	assert.Equal(t, `"main.py"`, pyStr("main.py"))
	assert.Equal(t, `"a\"b"`, pyStr(`a"b`))
	assert.Equal(t, `"line\nbreak"`, pyStr("line\nbreak"))
}

func TestFSUsage(t *testing.T) {
	u := FSUsage{BlockSize: 4096, Blocks: 512, FreeBlocks: 128}
	assert.Equal(t, int64(4096*512), u.Total())
	assert.Equal(t, int64(4096*128), u.Free())
}

func TestSession_FilePutAndGet(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)
	defer s.Close()

	board.feed("OK\x04\x04>") // open handle
	board.feed("OK\x04\x04>") // one frame
	board.feed("OK\x04\x04>") // close handle
	require.NoError(t, s.FilePut(context.Background(), "/main.py", []byte("print('hi')\n")))

	written := board.written()
	assert.Contains(t, written, `open("/main.py", 'wb')`)
	assert.Contains(t, written, "a2b_base64")

	// cHJpbnQoJ2hpJykK is base64 of the uploaded content.
	board.feed("OKcHJpbnQoJ2hpJykK\r\n\x04\x04>")
	data, err := s.FileGet(context.Background(), "/main.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestSession_Statvfs(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)
	defer s.Close()

	board.feed("OK[4096, 212992, 104448]\x04\x04>")
	usage, err := s.Statvfs(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), usage.BlockSize)
	assert.Equal(t, int64(4096*212992), usage.Total())
}

func TestSession_RTCNow(t *testing.T) {
	board := newMockBoard(connectScript()...)
	s := newTestSession(t, board)
	defer s.Close()

	board.feed("OK(2024, 3, 15, 10, 30, 45, 4, 75)\x04\x04>")
	got, err := s.RTCNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 45, 0, time.Local), got)
}
