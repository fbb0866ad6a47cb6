package dump

import (
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/cmd"
	"github.com/lunixbochs/binload/go/loader"
	"github.com/lunixbochs/binload/go/models"
)

var ErrNoSection = errors.New("no matching section")

// Dump hex dumps the named section, or .text when name is empty.
func Dump(p *models.Printer, b *loader.Binary, name string, width int) error {
	if name == "" {
		name = ".text"
	}
	sec, ok := b.Section(name)
	if !ok {
		p.Printf("no matching section '%s'\n", name)
		return errors.Wrapf(ErrNoSection, "%s", name)
	}
	for _, line := range models.HexDump(sec.VMA(), sec.Bytes(), b.Bits(), width) {
		p.Printf("%s\n", line)
	}
	return nil
}

// run backs the dump subcommand. A missing section is reported on the
// output and is not a failure.
func run(p *models.Printer, b *loader.Binary, args []string, width int) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	err := Dump(p, b, name, width)
	if errors.Is(err, ErrNoSection) {
		return nil
	}
	return err
}

func Main(args []string) {
	c := cmd.NewBinloadCmd("<binary> [section]", 1)
	c.RunBinary = func(b *loader.Binary, args []string) error {
		return run(c.Printer, b, args, c.Config.Width)
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("dump", "hex dump a section (default .text)", Main) }
