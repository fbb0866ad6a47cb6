package objfile

import (
	"debug/elf"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var elfMachineMap = map[elf.Machine]ArchInfo{
	elf.EM_386:     {MachI386, "i386"},
	elf.EM_X86_64:  {MachX86_64, "i386:x86-64"},
	elf.EM_ARM:     {MachARM, "arm"},
	elf.EM_AARCH64: {MachAArch64, "aarch64"},
	elf.EM_MIPS:    {MachMIPS, "mips"},
	elf.EM_PPC:     {MachPPC, "powerpc:common"},
	elf.EM_PPC64:   {MachPPC64, "powerpc:common64"},
}

var elfTargetMap = map[ArchInfo]string{
	elfMachineMap[elf.EM_386]:    "elf32-i386",
	elfMachineMap[elf.EM_X86_64]: "elf64-x86-64",
	{MachX64_32, "i386:x64-32"}:  "elf32-x86-64",
}

type elfObject struct {
	file *elf.File
	arch ArchInfo
	secs []*Section
}

func openElf(r io.ReaderAt) (object, error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	switch file.Type {
	case elf.ET_EXEC, elf.ET_DYN, elf.ET_REL:
	default:
		return nil, errors.Errorf("ELF type %s is not an object", file.Type)
	}
	arch, ok := elfMachineMap[file.Machine]
	if !ok {
		arch = ArchInfo{MachUnknown, strings.ToLower(strings.TrimPrefix(file.Machine.String(), "EM_"))}
	} else if arch.Mach == MachX86_64 && file.Class == elf.ELFCLASS32 {
		arch = ArchInfo{MachX64_32, "i386:x64-32"}
	}
	e := &elfObject{file: file, arch: arch}
	e.secs = e.loadSections()
	return e, nil
}

func (e *elfObject) flavour() Flavour     { return FlavourELF }
func (e *elfObject) startAddress() uint64 { return e.file.Entry }
func (e *elfObject) archInfo() ArchInfo   { return e.arch }
func (e *elfObject) sections() []*Section { return e.secs }

func (e *elfObject) targetName() string {
	if name, ok := elfTargetMap[e.arch]; ok {
		return name
	}
	bits := 32
	if e.file.Class == elf.ELFCLASS64 {
		bits = 64
	}
	endian := "little"
	if e.file.Data == elf.ELFDATA2MSB {
		endian = "big"
	}
	return fmt.Sprintf("elf%d-%s", bits, endian)
}

func (e *elfObject) loadSections() []*Section {
	ret := make([]*Section, 0, len(e.file.Sections))
	for i, s := range e.file.Sections {
		if s.Type == elf.SHT_NULL {
			continue
		}
		sec := &Section{
			Name:  s.Name,
			Index: i,
			Flags: elfSectionFlags(s),
			VMA:   s.Addr,
			Size:  s.Size,
		}
		switch {
		case s.Type == elf.SHT_NOBITS:
			sec.r = zeroReader{}
		case s.Flags&elf.SHF_COMPRESSED != 0:
			sec.r = &lazyReader{DataFunc: s.Data}
		default:
			sec.r = s.ReaderAt
		}
		ret = append(ret, sec)
	}
	return ret
}

func elfSectionFlags(s *elf.Section) SectionFlags {
	var flags SectionFlags
	if s.Type != elf.SHT_NOBITS {
		flags |= SecHasContents
	}
	if s.Flags&elf.SHF_ALLOC != 0 {
		flags |= SecAlloc
		if s.Type != elf.SHT_NOBITS {
			flags |= SecLoad
		}
	}
	if s.Flags&elf.SHF_WRITE == 0 {
		flags |= SecReadOnly
	}
	if s.Flags&elf.SHF_EXECINSTR != 0 {
		flags |= SecCode
	} else if flags&SecLoad != 0 {
		flags |= SecData
	}
	if strings.HasPrefix(s.Name, ".debug") || strings.HasPrefix(s.Name, ".zdebug") {
		flags |= SecDebugging
	}
	return flags
}

func (e *elfObject) symtab() ([]Symbol, error) {
	syms, err := e.file.Symbols()
	if err == elf.ErrNoSymbols {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read .symtab")
	}
	return e.convert(syms, 0), nil
}

func (e *elfObject) dynamicSymtab() ([]Symbol, error) {
	syms, err := e.file.DynamicSymbols()
	if err == elf.ErrNoSymbols {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read .dynsym")
	}
	return e.convert(syms, SymDynamic), nil
}

func (e *elfObject) convert(syms []elf.Symbol, extra SymbolFlags) []Symbol {
	ret := make([]Symbol, 0, len(syms))
	for _, s := range syms {
		value := s.Value
		// relocatable objects store section-relative values
		if e.file.Type == elf.ET_REL && s.Section > elf.SHN_UNDEF && s.Section < elf.SHN_LORESERVE && int(s.Section) < len(e.file.Sections) {
			value += e.file.Sections[s.Section].Addr
		}
		ret = append(ret, Symbol{
			Name:  s.Name,
			Value: value,
			Flags: elfSymbolFlags(s) | extra,
		})
	}
	return ret
}

func elfSymbolFlags(s elf.Symbol) SymbolFlags {
	var flags SymbolFlags
	switch elf.ST_BIND(s.Info) {
	case elf.STB_LOCAL:
		flags |= SymLocal
	case elf.STB_GLOBAL:
		flags |= SymGlobal
	case elf.STB_WEAK:
		flags |= SymWeak
	}
	switch elf.ST_TYPE(s.Info) {
	case elf.STT_FUNC, elf.STT_LOOS: // STT_GNU_IFUNC
		flags |= SymFunction
	case elf.STT_OBJECT, elf.STT_TLS, elf.STT_COMMON:
		flags |= SymObject
	case elf.STT_SECTION:
		flags |= SymSection
	case elf.STT_FILE:
		flags |= SymFile
	}
	if s.Section == elf.SHN_UNDEF {
		flags |= SymUndefined
	}
	return flags
}

type zeroReader struct{}

func (zeroReader) ReadAt(p []byte, off int64) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// lazyReader defers decoding until the first read.
type lazyReader struct {
	DataFunc func() ([]byte, error)

	data []byte
	err  error
	done bool
}

func (l *lazyReader) ReadAt(p []byte, off int64) (int, error) {
	if !l.done {
		l.data, l.err = l.DataFunc()
		l.done = true
	}
	if l.err != nil {
		return 0, l.err
	}
	if off >= int64(len(l.data)) {
		return 0, io.EOF
	}
	n := copy(p, l.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
