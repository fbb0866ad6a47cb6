package models

import (
	"fmt"
	"io"
	"os"
)

const (
	DefaultMaxSymbols     = 1 << 22
	DefaultMaxSectionSize = 1 << 30
	DefaultWidth          = 16
)

type Config struct {
	Color   bool
	Sort    bool
	Verbose bool
	Width   int

	// loads needing more than this many symbol records, or a section
	// larger than this many bytes, fail instead of allocating
	MaxSymbols     int
	MaxSectionSize uint64

	Output io.Writer
}

// Init fills unset fields with defaults.
func (c *Config) Init() *Config {
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.MaxSymbols <= 0 {
		c.MaxSymbols = DefaultMaxSymbols
	}
	if c.MaxSectionSize == 0 {
		c.MaxSectionSize = DefaultMaxSectionSize
	}
	return c
}

// Logf writes a diagnostic line to Output when Verbose is set.
func (c *Config) Logf(prefix, format string, a ...interface{}) {
	if !c.Verbose {
		return
	}
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "[%s] %s\n", prefix, fmt.Sprintf(format, a...))
}
