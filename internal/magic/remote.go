package magic

import (
	"context"
	"strings"
)

func init() {
	registerCell(&CellMagic{
		Name:  "remote",
		Doc:   "Execute the cell on the MicroPython board (implicit default)",
		Usage: "%%remote",
		Run:   remoteMagic,
	})
}

// remoteMagic executes the body on the board. Lines starting with a
// single % are line magics; the stretches of code between them run on
// the board in order, so a cell can interleave code and magics.
func remoteMagic(ctx context.Context, m *Context, _ []string, body string) (bool, error) {
	var chunk []string
	flush := func() {
		code := strings.TrimSpace(strings.Join(chunk, "\n"))
		chunk = chunk[:0]
		if code != "" {
			m.ExecRemote(ctx, code)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") && !strings.HasPrefix(trimmed, "%%") {
			flush()
			runLine(ctx, m, trimmed)
			continue
		}
		chunk = append(chunk, line)
	}
	flush()
	return false, nil
}
