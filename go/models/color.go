package models

import (
	"fmt"
	"io"
	"os"

	"github.com/lunixbochs/vtclean"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

var (
	ColorAddr    = ansi.ColorCode("yellow")
	ColorCodeSec = ansi.ColorCode("red+b")
	ColorDataSec = ansi.ColorCode("cyan")
	ColorName    = ansi.ColorCode("default+b")
	ColorError   = ansi.ColorCode("red+b")
)

func Colorize(s, color string) string {
	return color + s + ansi.Reset
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes formatted output, dropping escape sequences unless color
// is enabled.
type Printer struct {
	Out   io.Writer
	Color bool
}

func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{Out: out, Color: color}
}

func (p *Printer) Printf(format string, a ...interface{}) {
	s := fmt.Sprintf(format, a...)
	if !p.Color {
		s = vtclean.Clean(s, false)
	}
	fmt.Fprint(p.Out, s)
}

func (p *Printer) Println(a ...interface{}) {
	p.Printf("%s\n", fmt.Sprint(a...))
}
