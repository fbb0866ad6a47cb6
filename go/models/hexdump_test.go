package models

import (
	"strings"
	"testing"
)

func TestHexDump(t *testing.T) {
	mem := []byte("hello, world!\x00\x01\x02ABC")
	lines := HexDump(0x1000, mem, 64, 16)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	want := "0x0000000000001000: 68 65 6c 6c 6f 2c 20 77 6f 72 6c 64 21 00 01 02 | hello, world!..."
	if lines[0] != want {
		t.Fatalf("got  %q\nwant %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[1], "0x0000000000001010: 41 42 43 ") || !strings.HasSuffix(lines[1], "| ABC") {
		t.Fatalf("bad tail line %q", lines[1])
	}
	if len(lines[1]) != len(lines[0])-13 {
		t.Fatalf("ascii column not aligned: %q", lines[1])
	}
}

func TestHexDump32(t *testing.T) {
	lines := HexDump(0x8048000, []byte{0xc3}, 32, 8)
	if len(lines) != 1 || lines[0] != "0x08048000: c3                      | ." {
		t.Fatalf("got %q", lines)
	}
	if len(HexDump(0, nil, 64, 16)) != 0 {
		t.Fatal("dumped an empty buffer")
	}
	if len(HexDump(0, make([]byte, 20), 64, 10)) != 2 {
		t.Fatal("bad width did not fall back to the default")
	}
}

func TestAlign(t *testing.T) {
	if Align(17, 16) != 32 || Align(16, 16) != 16 || Align(uint64(0), 4096) != 0 {
		t.Fatal("bad alignment")
	}
}
