package objfile

import (
	"debug/macho"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	machoLoadCmdReqDyld = 0x80000000
	machoLoadCmdMain    = 0x28 | machoLoadCmdReqDyld

	machoSectionTypeMask = 0xff
	machoSectionZerofill = 0x1
	machoAttrPureInstr   = 0x80000000
	machoAttrSomeInstr   = 0x00000400
	machoAttrDebug       = 0x02000000
	machoSymTypeMask     = 0x0e
	machoSymTypeSect     = 0x0e
	machoSymTypeStab     = 0xe0
	machoSymExternal     = 0x01
)

var machoCpuMap = map[macho.Cpu]ArchInfo{
	macho.Cpu386:   {MachI386, "i386"},
	macho.CpuAmd64: {MachX86_64, "i386:x86-64"},
	macho.CpuArm:   {MachARM, "arm"},
	macho.CpuArm64: {MachAArch64, "aarch64"},
	macho.CpuPpc:   {MachPPC, "powerpc:common"},
	macho.CpuPpc64: {MachPPC64, "powerpc:common64"},
}

type machoObject struct {
	file  *macho.File
	arch  ArchInfo
	entry uint64
	secs  []*Section
}

func openMachO(r io.ReaderAt) (object, error) {
	file, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	arch, ok := machoCpuMap[file.Cpu]
	if !ok {
		arch = ArchInfo{MachUnknown, file.Cpu.String()}
	}
	m := &machoObject{file: file, arch: arch}
	// objects and dylibs legitimately have no entry point
	if m.entry, err = findEntry(file); err != nil && err != errNoEntry {
		return nil, err
	}
	m.secs = m.loadSections()
	return m, nil
}

// openFat refuses universal binaries, which are archives of objects.
func openFat(r io.ReaderAt) (object, error) {
	return nil, errors.New("universal binary is an archive, not an object")
}

var errNoEntry = errors.New("Could not find entry point.")

func findEntry(f *macho.File) (uint64, error) {
	for _, l := range f.Loads {
		data := l.Raw()
		if len(data) < 8 {
			return 0, errors.New("load command too short")
		}
		cmd := macho.LoadCmd(f.ByteOrder.Uint32(data[0:4]))
		if cmd == macho.LoadCmdUnixThread {
			// thread state follows the flavor/count words
			if f.Magic == macho.Magic64 {
				ip := 144
				if len(data) < ip+8 {
					return 0, errors.New("LC_UNIXTHREAD too short")
				}
				return f.ByteOrder.Uint64(data[ip : ip+8]), nil
			}
			ip := 56
			if len(data) < ip+4 {
				return 0, errors.New("LC_UNIXTHREAD too short")
			}
			return uint64(f.ByteOrder.Uint32(data[ip : ip+4])), nil
		} else if cmd == machoLoadCmdMain {
			// [8:16] == entry - __TEXT, data[16:24] == stack size
			text := f.Segment("__TEXT")
			if text == nil {
				return 0, errors.New("Found LC_MAIN but did not find __TEXT segment.")
			}
			if len(data) < 16 {
				return 0, errors.New("LC_MAIN too short")
			}
			return f.ByteOrder.Uint64(data[8:16]) + text.Addr, nil
		}
	}
	return 0, errNoEntry
}

func (m *machoObject) flavour() Flavour     { return FlavourMachO }
func (m *machoObject) startAddress() uint64 { return m.entry }
func (m *machoObject) archInfo() ArchInfo   { return m.arch }
func (m *machoObject) sections() []*Section { return m.secs }

func (m *machoObject) targetName() string {
	switch m.arch.Mach {
	case MachI386:
		return "mach-o-i386"
	case MachX86_64:
		return "mach-o-x86-64"
	case MachAArch64:
		return "mach-o-arm64"
	}
	if m.file.ByteOrder == binary.BigEndian {
		return "mach-o-be"
	}
	return "mach-o-le"
}

func (m *machoObject) loadSections() []*Section {
	ret := make([]*Section, 0, len(m.file.Sections))
	for i, s := range m.file.Sections {
		var flags SectionFlags
		zerofill := s.Flags&machoSectionTypeMask == machoSectionZerofill
		flags |= SecAlloc
		if !zerofill {
			flags |= SecLoad | SecHasContents
		}
		if s.Flags&(machoAttrPureInstr|machoAttrSomeInstr) != 0 {
			flags |= SecCode
		} else if !zerofill {
			flags |= SecData
		}
		if s.Flags&machoAttrDebug != 0 || s.Seg == "__DWARF" {
			flags |= SecDebugging
		}
		sec := &Section{
			Name:  s.Name,
			Index: i,
			Flags: flags,
			VMA:   s.Addr,
			Size:  s.Size,
			r:     s.ReaderAt,
		}
		if zerofill {
			sec.r = zeroReader{}
		}
		ret = append(ret, sec)
	}
	return ret
}

func (m *machoObject) symtab() ([]Symbol, error) {
	if m.file.Symtab == nil {
		return nil, nil
	}
	indirect := make(map[uint32]bool)
	if m.file.Dysymtab != nil {
		for _, v := range m.file.Dysymtab.IndirectSyms {
			indirect[v] = true
		}
	}
	syms := m.file.Symtab.Syms
	ret := make([]Symbol, 0, len(syms))
	for i, s := range syms {
		if s.Type&machoSymTypeStab != 0 || s.Name == "" {
			continue
		}
		var flags SymbolFlags
		if s.Type&machoSymExternal != 0 {
			flags |= SymGlobal
		} else {
			flags |= SymLocal
		}
		if s.Type&machoSymTypeMask != machoSymTypeSect || s.Sect == 0 {
			flags |= SymUndefined
		} else if int(s.Sect) <= len(m.secs) && m.secs[s.Sect-1].Flags&SecCode != 0 {
			flags |= SymFunction
		} else {
			flags |= SymObject
		}
		if indirect[uint32(i)] {
			flags |= SymDynamic
		}
		ret = append(ret, Symbol{Name: s.Name, Value: s.Value, Flags: flags})
	}
	return ret, nil
}

// Mach-O keeps imports and exports in the one symbol table.
func (m *machoObject) dynamicSymtab() ([]Symbol, error) {
	return nil, nil
}
