package files

import (
	"io"
	"strings"
)

// ZoneWidth is the width of a PRINT comma zone.
const ZoneWidth = 14

// Printer writes PRINT output and tracks the current column.
type Printer struct {
	w   io.Writer
	col int
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Column returns the 0-based column of the next character.
func (p *Printer) Column() int { return p.col }

// Print writes s and advances the column.
func (p *Printer) Print(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(p.w, s); err != nil {
		return err
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.col = len(s) - i - 1
	} else {
		p.col += len(s)
	}
	return nil
}

// Newline ends the current output line.
func (p *Printer) Newline() error { return p.Print("\n") }

// Comma moves to the start of the next print zone.
func (p *Printer) Comma() error {
	n := ZoneWidth - p.col%ZoneWidth
	return p.Print(strings.Repeat(" ", n))
}

// Tab moves to 1-based column n, starting a new line when the cursor is
// already past it.
func (p *Printer) Tab(n int) error {
	if n < 1 {
		n = 1
	}
	target := n - 1
	if p.col > target {
		if err := p.Newline(); err != nil {
			return err
		}
	}
	return p.Print(strings.Repeat(" ", target-p.col))
}

// Spc writes n blanks.
func (p *Printer) Spc(n int) error {
	if n <= 0 {
		return nil
	}
	return p.Print(strings.Repeat(" ", n))
}

// resetColumn is used after console input, which ends with the user's Enter.
func (p *Printer) resetColumn() { p.col = 0 }
