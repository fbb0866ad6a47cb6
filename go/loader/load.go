package loader

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/objfile"
)

var flavourTable = map[objfile.Flavour]Type{
	objfile.FlavourELF:  TypeELF,
	objfile.FlavourCOFF: TypePE,
}

type archBits struct {
	arch Arch
	bits int
}

var machineTable = map[objfile.Machine]archBits{
	objfile.MachI386:   {ArchX86, 32},
	objfile.MachX86_64: {ArchX86, 64},
}

func (b *Binary) logf(format string, a ...interface{}) {
	b.config.Logf("loader", format, a...)
}

// load builds a fresh image and commits it only once everything succeeded.
func (b *Binary) load(path string, typ Type) error {
	if b.valid {
		return nil
	}
	img := image{filename: path, typ: typ}

	f, err := b.backend.Open(path)
	if err != nil {
		return newError(OpenFailure, err, "failed to open binary '%s'", path)
	}
	defer f.Close()
	if err := f.CheckFormat(); err != nil {
		if errors.Is(err, objfile.ErrNotObject) {
			return newError(FormatFailure, err, "file '%s' does not look like an executable", path)
		}
		return newError(FormatFailure, err, "unrecognized format for binary '%s'", path)
	}

	img.entry = f.StartAddress()
	img.typeStr = f.TargetName()
	flavour := f.Flavour()
	t, ok := flavourTable[flavour]
	if !ok {
		return newError(FormatFailure, nil, "unsupported binary type (%s)", flavour)
	}
	img.typ = t

	info := f.ArchInfo()
	img.archStr = info.PrintableName
	ab, ok := machineTable[info.Mach]
	if !ok {
		return newError(FormatFailure, nil, "unsupported architecture (%s)", info.PrintableName)
	}
	img.arch, img.bits = ab.arch, ab.bits

	if err := b.loadSymbols(f, &img); err != nil {
		return err
	}
	if err := b.loadSections(f, &img); err != nil {
		return err
	}
	b.image = img
	b.valid = true
	b.logf("%s: %s/%s, %d sections, %d symbols", path, img.typeStr, img.archStr, len(img.sections), len(img.symbols))
	return nil
}

type symtab struct {
	name         string
	upperBound   func() (int, error)
	canonicalize func([]objfile.Symbol) (int, error)
}

// loadSymbols reads the static table and then the dynamic one. A missing
// table is not an error.
func (b *Binary) loadSymbols(f objfile.File, img *image) error {
	tables := []symtab{
		{"symtab", f.SymtabUpperBound, f.CanonicalizeSymtab},
		{"dynamic symtab", f.DynamicSymtabUpperBound, f.CanonicalizeDynamicSymtab},
	}
	for _, tab := range tables {
		if err := b.loadSymtab(tab, img); err != nil {
			return err
		}
	}
	return nil
}

func (b *Binary) loadSymtab(tab symtab, img *image) error {
	n, err := tab.upperBound()
	if err != nil || n < 0 {
		return newError(ReadFailure, err, "failed to read %s", tab.name)
	}
	if n == 0 {
		b.logf("%s: no %s", img.filename, tab.name)
		return nil
	}
	if n > b.config.MaxSymbols {
		return newError(AllocFailure, nil, "out of memory (%s needs %d records)", tab.name, n)
	}
	buf := make([]objfile.Symbol, n)
	count, err := tab.canonicalize(buf)
	if err != nil || count < 0 {
		return newError(ReadFailure, err, "failed to read %s", tab.name)
	}
	for _, s := range buf[:count] {
		if s.Flags&objfile.SymFunction == 0 {
			continue
		}
		img.symbols = append(img.symbols, Symbol{Name: s.Name, Addr: s.Value, Kind: SymbolFunction})
	}
	return nil
}

func (b *Binary) loadSections(f objfile.File, img *image) error {
	for _, s := range f.Sections() {
		var kind SectionKind
		switch {
		case s.Flags&objfile.SecCode != 0:
			kind = SectionCode
		case s.Flags&objfile.SecData != 0:
			kind = SectionData
		default:
			b.logf("skipping section %s", s.Name)
			continue
		}
		name := s.Name
		if name == "" {
			name = unnamedSection
		}
		if s.Size > b.config.MaxSectionSize {
			return newError(AllocFailure, nil, "out of memory (section '%s' is %d bytes)", name, s.Size)
		}
		buf := make([]byte, s.Size)
		if err := f.SectionContents(s, buf, 0); err != nil {
			return newError(ReadFailure, err, "failed to read section '%s'", name)
		}
		img.sections = append(img.sections, Section{
			binary: b,
			kind:   kind,
			name:   name,
			vma:    s.VMA,
			bytes:  buf,
		})
	}
	return nil
}
