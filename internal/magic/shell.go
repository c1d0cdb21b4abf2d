package magic

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/pflag"
)

func init() {
	registerCell(&CellMagic{
		Name:  "shell",
		Doc:   "Run the cell in a host shell, streaming combined output",
		Usage: "%%shell [-s shell]",
		Run:   shellMagic,
	})
}

func shellMagic(ctx context.Context, m *Context, args []string, body string) (bool, error) {
	fs := pflag.NewFlagSet("shell", pflag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	shell := fs.StringP("shell", "s", m.Config.Shell, "Shell to use")
	if err := fs.Parse(args); err != nil {
		return false, err
	}

	cmd := exec.CommandContext(ctx, *shell, "-c", body)
	// Own process group, so an interrupt kills the whole pipeline.
	setProcGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return false, fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return false, fmt.Errorf("start %s: %w", *shell, err)
	}
	pw.Close()
	m.trackShell(cmd.Process.Pid)
	defer m.untrackShell()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(m.Stdout, scanner.Text())
	}
	pr.Close()

	if err := cmd.Wait(); err != nil {
		fmt.Fprintf(m.Stderr, "shell: %v\n", err)
	}
	return false, nil
}
