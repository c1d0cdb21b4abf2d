package magic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/pflag"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

func init() {
	registerCell(&CellMagic{
		Name:  "template",
		Doc:   "Render the cell as a Go template (sprig functions, env context)",
		Usage: "%%template [-x] [dest]",
		Run:   templateMagic,
	})
}

// templateMagic renders the cell body with the process environment and
// resolved dinghy settings as context. The result goes to a host file,
// to the notebook, or with -x straight to the board for execution.
func templateMagic(ctx context.Context, m *Context, args []string, body string) (bool, error) {
	fs := pflag.NewFlagSet("template", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	execute := fs.BoolP("execute", "x", false, "Execute the rendered text on the board")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if fs.NArg() > 1 {
		return false, fmt.Errorf("usage: %%%%template [-x] [dest]")
	}

	tmpl, err := template.New("cell").Funcs(sprig.TxtFuncMap()).Parse(body)
	if err != nil {
		return false, fmt.Errorf("parse template: %w", err)
	}

	data := map[string]any{"Env": m.Config.EnvContext()}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return false, fmt.Errorf("render template: %w", err)
	}

	switch {
	case *execute:
		m.ExecRemote(ctx, buf.String())
	case fs.NArg() == 1:
		dest := fileutil.ExpandPath(fs.Arg(0))
		fmt.Fprintf(m.Stdout, "Writing %s\n", dest)
		return false, fileutil.WriteFile(dest, buf.Bytes(), 0o644)
	default:
		io.Copy(m.Stdout, &buf)
	}
	return false, nil
}
