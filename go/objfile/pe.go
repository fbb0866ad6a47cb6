package objfile

import (
	"debug/pe"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var peMachineMap = map[uint16]ArchInfo{
	pe.IMAGE_FILE_MACHINE_I386:  {MachI386, "i386"},
	pe.IMAGE_FILE_MACHINE_AMD64: {MachX86_64, "i386:x86-64"},
	pe.IMAGE_FILE_MACHINE_ARMNT: {MachARM, "arm"},
	pe.IMAGE_FILE_MACHINE_ARM64: {MachAArch64, "aarch64"},
}

var peTargetSuffix = map[Machine]string{
	MachI386:    "i386",
	MachX86_64:  "x86-64",
	MachARM:     "arm-wince-little",
	MachAArch64: "aarch64-little",
}

const (
	coffSymClassExternal     = 2
	coffSymClassStatic       = 3
	coffSymClassFile         = 103
	coffSymClassSection      = 104
	coffSymClassWeakExternal = 105

	// derived type lives in bits 4-5 of Symbol.Type
	coffDerivedTypeFunction = 2
)

type peObject struct {
	file      *pe.File
	arch      ArchInfo
	image     bool
	imageBase uint64
	entry     uint64
	dirs      []pe.DataDirectory
	secs      []*Section
}

func openPE(r io.ReaderAt) (object, error) {
	file, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	arch, ok := peMachineMap[file.Machine]
	if !ok {
		arch = ArchInfo{MachUnknown, fmt.Sprintf("unknown(%#x)", file.Machine)}
	}
	p := &peObject{file: file, arch: arch}
	switch oh := file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		p.image = true
		p.imageBase = uint64(oh.ImageBase)
		p.entry = p.imageBase + uint64(oh.AddressOfEntryPoint)
		p.dirs = dataDirs(oh.DataDirectory[:], oh.NumberOfRvaAndSizes)
	case *pe.OptionalHeader64:
		p.image = true
		p.imageBase = oh.ImageBase
		p.entry = p.imageBase + uint64(oh.AddressOfEntryPoint)
		p.dirs = dataDirs(oh.DataDirectory[:], oh.NumberOfRvaAndSizes)
	}
	p.secs = p.loadSections()
	return p, nil
}

func dataDirs(dirs []pe.DataDirectory, n uint32) []pe.DataDirectory {
	if int(n) < len(dirs) {
		return dirs[:n]
	}
	return dirs
}

func (p *peObject) flavour() Flavour     { return FlavourCOFF }
func (p *peObject) startAddress() uint64 { return p.entry }
func (p *peObject) archInfo() ArchInfo   { return p.arch }
func (p *peObject) sections() []*Section { return p.secs }

func (p *peObject) targetName() string {
	prefix := "pe"
	if p.image {
		prefix = "pei"
	}
	if suffix, ok := peTargetSuffix[p.arch.Mach]; ok {
		return prefix + "-" + suffix
	}
	return prefix + "-unknown"
}

func (p *peObject) loadSections() []*Section {
	ret := make([]*Section, 0, len(p.file.Sections))
	for i, s := range p.file.Sections {
		size := uint64(s.Size)
		if s.VirtualSize != 0 && s.VirtualSize < s.Size {
			size = uint64(s.VirtualSize)
		}
		sec := &Section{
			Name:  s.Name,
			Index: i,
			Flags: peSectionFlags(s),
			VMA:   p.imageBase + uint64(s.VirtualAddress),
			Size:  size,
			r:     s.ReaderAt,
		}
		if s.Characteristics&pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA != 0 || s.Offset == 0 {
			sec.r = zeroReader{}
			if s.Size == 0 {
				sec.Size = uint64(s.VirtualSize)
			}
		}
		ret = append(ret, sec)
	}
	return ret
}

func peSectionFlags(s *pe.Section) SectionFlags {
	var flags SectionFlags
	c := s.Characteristics
	if c&pe.IMAGE_SCN_MEM_WRITE == 0 {
		flags |= SecReadOnly
	}
	if c&(pe.IMAGE_SCN_CNT_CODE|pe.IMAGE_SCN_MEM_EXECUTE) != 0 {
		flags |= SecCode | SecAlloc | SecLoad | SecHasContents
	} else if c&pe.IMAGE_SCN_CNT_INITIALIZED_DATA != 0 {
		flags |= SecData | SecAlloc | SecLoad | SecHasContents
	} else if c&pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA != 0 {
		flags |= SecAlloc
	}
	if strings.HasPrefix(s.Name, ".debug") || (strings.HasPrefix(s.Name, "/") && c&pe.IMAGE_SCN_MEM_DISCARDABLE != 0) {
		flags |= SecDebugging
	}
	return flags
}

func (p *peObject) symtab() ([]Symbol, error) {
	if len(p.file.Symbols) == 0 {
		return nil, nil
	}
	ret := make([]Symbol, 0, len(p.file.Symbols))
	for _, s := range p.file.Symbols {
		value := uint64(s.Value)
		if s.SectionNumber > 0 && int(s.SectionNumber) <= len(p.file.Sections) {
			value += p.imageBase + uint64(p.file.Sections[s.SectionNumber-1].VirtualAddress)
		}
		ret = append(ret, Symbol{
			Name:  s.Name,
			Value: value,
			Flags: coffSymbolFlags(s),
		})
	}
	return ret, nil
}

func coffSymbolFlags(s *pe.Symbol) SymbolFlags {
	var flags SymbolFlags
	switch s.StorageClass {
	case coffSymClassExternal:
		flags |= SymGlobal
	case coffSymClassStatic:
		flags |= SymLocal
	case coffSymClassWeakExternal:
		flags |= SymWeak
	case coffSymClassFile:
		flags |= SymFile | SymLocal
	case coffSymClassSection:
		flags |= SymSection | SymLocal
	}
	if (s.Type>>4)&3 == coffDerivedTypeFunction {
		flags |= SymFunction
	}
	if s.SectionNumber == 0 {
		flags |= SymUndefined
	}
	return flags
}

func (p *peObject) dynamicSymtab() ([]Symbol, error) {
	if len(p.dirs) <= pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
		return nil, nil
	}
	dir := p.dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, nil
	}
	exports, err := p.readExports(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read export directory")
	}
	return exports, nil
}

// sectionAt finds the section whose virtual range holds rva.
func (p *peObject) sectionAt(rva uint32) *pe.Section {
	for _, s := range p.file.Sections {
		size := s.VirtualSize
		if size < s.Size {
			size = s.Size
		}
		if s.VirtualAddress <= rva && rva < s.VirtualAddress+size {
			return s
		}
	}
	return nil
}

// rvaReader returns a reader positioned at rva within the raw file data.
func (p *peObject) rvaReader(rva uint32) (io.ReaderAt, int64, error) {
	s := p.sectionAt(rva)
	if s == nil {
		return nil, 0, errors.Errorf("rva %#x is not inside any section", rva)
	}
	return s.ReaderAt, int64(rva - s.VirtualAddress), nil
}
