package models

import (
	"bytes"
	"os"
	"testing"
)

func TestConfigInit(t *testing.T) {
	c := (&Config{MaxSymbols: 10}).Init()
	if c.Output != os.Stderr || c.Width != DefaultWidth || c.MaxSectionSize != DefaultMaxSectionSize {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.MaxSymbols != 10 {
		t.Fatal("Init overwrote MaxSymbols")
	}
}

func TestConfigLogf(t *testing.T) {
	var buf bytes.Buffer
	c := (&Config{Output: &buf}).Init()
	c.Logf("loader", "quiet %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("logged without Verbose: %q", buf.String())
	}
	c.Verbose = true
	c.Logf("loader", "loud %d", 2)
	if buf.String() != "[loader] loud 2\n" {
		t.Fatalf("got %q", buf.String())
	}
}
