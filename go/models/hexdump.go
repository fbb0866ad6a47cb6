package models

import (
	"fmt"
	"strings"
)

func printable(p []byte) string {
	o := make([]byte, len(p))
	for i, c := range p {
		if c >= 0x20 && c <= 0x7e {
			o[i] = c
		} else {
			o[i] = '.'
		}
	}
	return string(o)
}

// HexDump renders mem as rows of width bytes: address, hex bytes, then the
// printable characters. width must be a power of two; anything else falls
// back to DefaultWidth.
func HexDump(base uint64, mem []byte, bits, width int) []string {
	if width <= 0 || width&(width-1) != 0 {
		width = DefaultWidth
	}
	if bits != 32 {
		bits = 64
	}
	hexFmt := fmt.Sprintf("0x%%0%dx: ", bits/4)
	out := make([]string, 0, Align(len(mem), width)/width)
	for i := 0; i < len(mem); i += width {
		row := mem[i:min(i+width, len(mem))]
		var line strings.Builder
		fmt.Fprintf(&line, hexFmt, base+uint64(i))
		for _, c := range row {
			fmt.Fprintf(&line, "%02x ", c)
		}
		// short rows keep the ascii column lined up
		line.WriteString(strings.Repeat("   ", width-len(row)))
		line.WriteString("| ")
		line.WriteString(printable(row))
		out = append(out, line.String())
	}
	return out
}
