package magic

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// RunCell executes one notebook cell. The cell is prefixed with the
// implicit "remote" environment and split on "\n%%" into chunks; each
// chunk's head line names a cell magic, the remainder is its body.
//
// Splitting is purely textual: a "\n%%" inside a string literal splits
// the cell too. That quirk is long-standing notebook behavior and is
// kept rather than fixed.
func RunCell(ctx context.Context, m *Context, code string) {
	cells := strings.Split(strings.TrimSpace("remote\n"+code), "\n%%")
	for _, cell := range cells {
		head, body, _ := strings.Cut(cell, "\n")
		name, argstr, _ := strings.Cut(strings.TrimSpace(head), " ")

		cm, ok := LookupCell(name)
		if !ok {
			fmt.Fprintf(m.Stderr, "Unknown cell magic: %%%%%s\n", name)
			continue
		}
		args, err := shlex.Split(argstr)
		if err != nil {
			fmt.Fprintf(m.Stderr, "Error parsing arguments of %%%%%s: %v\n", name, err)
			continue
		}
		stop, err := cm.Run(ctx, m, args, body)
		if err != nil {
			fmt.Fprintf(m.Stderr, "Error executing cell magic %%%%%s: %v\n", name, err)
		}
		if stop {
			return
		}
	}
}

// runLine dispatches one %line magic.
func runLine(ctx context.Context, m *Context, line string) {
	name, argstr, _ := strings.Cut(strings.TrimPrefix(line, "%"), " ")

	lm, ok := LookupLine(name)
	if !ok {
		fmt.Fprintf(m.Stderr, "Unknown line magic: %%%s\n", name)
		return
	}
	args, err := shlex.Split(argstr)
	if err != nil {
		fmt.Fprintf(m.Stderr, "Error parsing arguments of %%%s: %v\n", name, err)
		return
	}
	if err := lm.Run(ctx, m, args); err != nil {
		fmt.Fprintf(m.Stderr, "Error executing line magic %%%s: %v\n", name, err)
	}
}
