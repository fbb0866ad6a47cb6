package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/loader"
	"github.com/lunixbochs/binload/go/models"
)

type BinloadCmd struct {
	Config *models.Config
	// positional arguments, for usage
	Args    string
	MinArgs int

	SetupFlags func() error
	// RunBinary is called with the loaded binary and the arguments after it.
	RunBinary func(b *loader.Binary, args []string) error

	Flags   *flag.FlagSet
	Printer *models.Printer
	Stderr  io.Writer
}

func NewBinloadCmd(args string, minArgs int) *BinloadCmd {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	return &BinloadCmd{Flags: fs, Args: args, MinArgs: minArgs, Stderr: os.Stderr}
}

func parseType(s string) (loader.Type, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return loader.TypeAuto, nil
	case "elf":
		return loader.TypeELF, nil
	case "pe", "coff":
		return loader.TypePE, nil
	}
	return loader.TypeAuto, errors.Errorf("unknown binary type %q (auto, elf or pe)", s)
}

func parseColor(s string, out io.Writer) (bool, error) {
	switch s {
	case "auto":
		return models.IsTerminal(out), nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, errors.Errorf("bad -color %q (auto, always or never)", s)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type stackFrame struct {
	path, line, fn string
}

// stackFrames resolves a pkg/errors stack, stopping after main.main.
func stackFrames(st errors.StackTrace) []stackFrame {
	var frames []stackFrame
	for _, f := range st {
		fr := stackFrame{line: fmt.Sprintf("%s:%d", f, f), fn: fmt.Sprintf("%n", f)}
		// %+s is "import/path.func\n\t/full/path.go"
		if fn, path, ok := strings.Cut(fmt.Sprintf("%+s", f), "\n"); ok {
			fr.fn = fn[strings.LastIndex(fn, "/")+1:]
			fr.path = strings.TrimSpace(path)
		}
		frames = append(frames, fr)
		if fr.fn == "main.main" {
			break
		}
	}
	return frames
}

func writeFrames(w io.Writer, frames []stackFrame) {
	var wpath, wline int
	for _, f := range frames {
		wpath = max(wpath, len(f.path))
		wline = max(wline, len(f.line))
	}
	for _, f := range frames {
		if wpath > 0 {
			fmt.Fprintf(w, "%-*s | ", wpath, f.path)
		}
		fmt.Fprintf(w, "%-*s | %s()\n", wline, f.line, f.fn)
	}
}

// PrintError writes err to Stderr, followed by its stack trace in verbose mode.
func (c *BinloadCmd) PrintError(err error) {
	msg := fmt.Sprintf("Error: %s", err)
	if c.Printer != nil && c.Printer.Color {
		msg = models.Colorize(msg, models.ColorError)
	}
	fmt.Fprintf(c.Stderr, "%s\n%s\n", strings.Repeat("-", 40), msg)
	if c.Config == nil || !c.Config.Verbose {
		return
	}
	var st stackTracer
	if errors.As(err, &st) {
		writeFrames(c.Stderr, stackFrames(st.StackTrace()))
	}
}

// Run parses argv, loads the binary named by the first positional argument
// and hands it to RunBinary. It returns the process exit status.
func (c *BinloadCmd) Run(argv []string) int {
	fs := c.Flags
	fs.SetOutput(c.Stderr)
	verbose := fs.Bool("v", false, "verbose output (loader diagnostics, error stack traces)")
	color := fs.String("color", "auto", "colorize output: auto, always or never")
	sortNames := fs.Bool("sort", false, "list sections and symbols in natural name order")
	width := fs.Int("width", models.DefaultWidth, "bytes per hex dump row (power of two)")
	typ := fs.String("type", "auto", "expected binary type: auto, elf or pe (detection wins)")
	maxSyms := fs.Int("maxsyms", models.DefaultMaxSymbols, "refuse symbol tables with more records than this")
	maxSection := fs.Uint64("maxsection", models.DefaultMaxSectionSize, "refuse sections larger than this many bytes")
	outfile := fs.String("o", "", "write output to file (default stdout)")

	fs.Usage = func() {
		fmt.Fprintf(c.Stderr, "Usage: %s [options] %s\n\nOptions:\n", argv[0], c.Args)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(c.Stderr, flags)
		if path := configPath(); path != "" {
			fmt.Fprintf(c.Stderr, "\nDefault options are read from %s\n", path)
		}
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	name := argv[0]
	if split := strings.Fields(name); len(split) > 1 {
		name = split[len(split)-1]
	}
	defaults, err := DefaultArgs(name)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if err := fs.Parse(append(defaults, argv[1:]...)); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	args := fs.Args()
	if len(args) < c.MinArgs {
		fs.Usage()
		return 1
	}

	var out io.Writer = os.Stdout
	if *outfile != "" {
		f, err := os.Create(*outfile)
		if err != nil {
			c.PrintError(errors.Wrap(err, "failed to create output file"))
			return 1
		}
		defer f.Close()
		out = f
	}
	useColor, err := parseColor(*color, out)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if *width <= 0 || *width&(*width-1) != 0 {
		c.PrintError(errors.Errorf("-width %d is not a power of two", *width))
		return 1
	}
	btype, err := parseType(*typ)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	c.Config = (&models.Config{
		Color:          useColor,
		Sort:           *sortNames,
		Verbose:        *verbose,
		Width:          *width,
		MaxSymbols:     *maxSyms,
		MaxSectionSize: *maxSection,
		Output:         c.Stderr,
	}).Init()
	c.Printer = models.NewPrinter(out, useColor)

	b, err := loader.Open(args[0], btype, c.Config)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if c.RunBinary != nil {
		if err := c.RunBinary(b, args[1:]); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	return 0
}
