// Package ui provides colored console output for dinghy.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	// Colors
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
)

// Success prints a green success message with checkmark.
func Success(format string, args ...any) {
	Green.Printf("✓ "+format+"\n", args...)
}

// Error prints a red error message with X.
func Error(format string, args ...any) {
	Red.Printf("✗ "+format+"\n", args...)
}

// Warning prints a yellow warning message.
func Warning(format string, args ...any) {
	Yellow.Printf("⚠ "+format+"\n", args...)
}

// Info prints a blue info message.
func Info(format string, args ...any) {
	Blue.Printf(format+"\n", args...)
}

// Header prints a bold header.
func Header(format string, args ...any) {
	Bold.Printf(format+"\n", args...)
}

// Board prints a green message with a circuit-board glyph.
func Board(format string, args ...any) {
	Green.Printf("🔌 "+format+"\n", args...)
}

// Anchor prints a blue nautical status message.
func Anchor(format string, args ...any) {
	Blue.Printf("⚓ "+format+"\n", args...)
}

// Printer writes colored output to a fixed writer. Notebook front-ends
// render ANSI escapes but the stream writers are not TTYs, so color is
// forced on rather than auto-detected.
type Printer struct {
	w     io.Writer
	red   *color.Color
	green *color.Color
	cyan  *color.Color
}

// NewPrinter returns a Printer bound to w with color forced on.
func NewPrinter(w io.Writer) *Printer {
	mk := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		c.EnableColor()
		return c
	}
	return &Printer{
		w:     w,
		red:   mk(color.FgRed),
		green: mk(color.FgGreen),
		cyan:  mk(color.FgCyan),
	}
}

// Printf writes plain (uncolored) output.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Red writes red output.
func (p *Printer) Red(format string, args ...any) {
	p.red.Fprintf(p.w, format, args...)
}

// Green writes green output.
func (p *Printer) Green(format string, args ...any) {
	p.green.Fprintf(p.w, format, args...)
}

// Cyan writes cyan output.
func (p *Printer) Cyan(format string, args ...any) {
	p.cyan.Fprintf(p.w, format, args...)
}
