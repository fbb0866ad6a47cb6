package sym

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/cmd"
	"github.com/lunixbochs/binload/go/loader"
	"github.com/lunixbochs/binload/go/models"
)

func parseAddr(s string) (uint64, error) {
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad address %q", s)
	}
	return addr, nil
}

// Resolve formats addr as symbol+offset within its section.
func Resolve(b *loader.Binary, addr uint64) string {
	sec, ok := b.SectionAt(addr)
	if !ok {
		return "?"
	}
	sym, dist, ok := b.Symbolicate(addr)
	if !ok {
		return fmt.Sprintf("%s+0x%x", sec.Name(), addr-sec.VMA())
	}
	if dist == 0 {
		return fmt.Sprintf("%s (%s)", sym.Name, sec.Name())
	}
	return fmt.Sprintf("%s+0x%x (%s)", sym.Name, dist, sec.Name())
}

func Symbolicate(p *models.Printer, b *loader.Binary, addrs []string) error {
	for _, s := range addrs {
		addr, err := parseAddr(s)
		if err != nil {
			return err
		}
		p.Printf("%s %s\n", models.Colorize(fmt.Sprintf("0x%016x", addr), models.ColorAddr), Resolve(b, addr))
	}
	return nil
}

func Main(args []string) {
	c := cmd.NewBinloadCmd("<binary> <addr>...", 2)
	c.RunBinary = func(b *loader.Binary, args []string) error {
		return Symbolicate(c.Printer, b, args)
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("sym", "resolve addresses to function+offset", Main) }
