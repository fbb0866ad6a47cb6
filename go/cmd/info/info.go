package info

import (
	"fmt"
	"os"

	"github.com/lunixbochs/binload/go/cmd"
	"github.com/lunixbochs/binload/go/loader"
	"github.com/lunixbochs/binload/go/models"
)

func sectionColor(s loader.Section) string {
	if s.IsCode() {
		return models.ColorCodeSec
	}
	return models.ColorDataSec
}

// Print writes the binary's summary line, section table and symbol table.
func Print(p *models.Printer, b *loader.Binary, sorted bool) {
	p.Printf("loaded binary '%s' %s/%s (%d bits) entry @%s\n",
		b.Filename(), b.TypeStr(), b.ArchStr(), b.Bits(),
		models.Colorize(fmt.Sprintf("0x%016x", b.Entry()), models.ColorAddr))

	secs := b.Sections()
	if sorted {
		cmd.SortSections(secs)
	}
	for _, s := range secs {
		p.Printf("  %s %-8d %-20s %s\n",
			models.Colorize(fmt.Sprintf("0x%016x", s.VMA()), models.ColorAddr),
			s.Size(), s.Name(), models.Colorize(s.Kind().String(), sectionColor(s)))
	}

	syms := b.Symbols()
	if len(syms) == 0 {
		return
	}
	if sorted {
		cmd.SortSymbols(syms)
	}
	p.Printf("scanned symbol tables\n")
	for _, sym := range syms {
		p.Printf("  %-40s %s %s\n",
			sym.Name, models.Colorize(fmt.Sprintf("0x%016x", sym.Addr), models.ColorAddr), sym.Kind)
	}
}

func Main(args []string) {
	c := cmd.NewBinloadCmd("<binary>", 1)
	c.RunBinary = func(b *loader.Binary, args []string) error {
		Print(c.Printer, b, c.Config.Sort)
		return nil
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("info", "print a binary's format, sections and function symbols", Main) }
