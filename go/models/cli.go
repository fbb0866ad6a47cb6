package models

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const usageWidth = 80

// wrapUsage splits s into lines of at most width bytes, breaking at the last
// space or newline that fits.
func wrapUsage(s string, width int) []string {
	var lines []string
	for len(s) > width {
		cut, next := width, width
		if i := strings.LastIndexAny(s[:width], " \n"); i > 0 {
			cut, next = i, i+1
		}
		lines = append(lines, s[:cut])
		s = s[next:]
	}
	return append(lines, s)
}

// PrintFlags writes an aligned option table, wrapping usage text to fit.
func PrintFlags(w io.Writer, flags []*flag.Flag) {
	var wname, wdef int
	for _, f := range flags {
		wname = max(wname, len(f.Name))
		wdef = max(wdef, len(f.DefValue))
	}
	// "  -" + name + " " + "(default)" + " "
	indent := wname + wdef + 7
	wdesc := max(usageWidth-indent, 20)
	for _, f := range flags {
		def := ""
		if f.DefValue != "" && f.DefValue != "false" {
			def = "(" + f.DefValue + ")"
		}
		fmt.Fprintf(w, "  -%-*s %-*s ", wname, f.Name, wdef+2, def)
		for i, line := range wrapUsage(f.Usage, wdesc) {
			if i > 0 {
				fmt.Fprint(w, strings.Repeat(" ", indent))
			}
			fmt.Fprintln(w, line)
		}
	}
}
