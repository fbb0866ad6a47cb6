// Package objtest synthesizes small object files for tests.
package objtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

type ElfSection struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
	// Size overrides len(Data), for SHT_NOBITS sections.
	Size uint64
}

type ElfSymbol struct {
	Name  string
	Value uint64
	Size  uint64
	Type  elf.SymType
	Bind  elf.SymBind
	// Section names the defining section, empty for undefined symbols.
	Section string
}

// Elf describes a little-endian ELF file. Symbols and DynSymbols become
// .symtab and .dynsym when non-nil.
type Elf struct {
	Class      elf.Class
	Machine    elf.Machine
	Type       elf.Type
	Entry      uint64
	Sections   []ElfSection
	Symbols    []ElfSymbol
	DynSymbols []ElfSymbol
}

type elfHeader64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elfHeader32 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elfSection64 struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type elfSection32 struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

type elfSym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type elfSym32 struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

type elfShdr struct {
	name      string
	typ       elf.SectionType
	flags     elf.SectionFlag
	addr      uint64
	data      []byte
	size      uint64
	link      uint32
	info      uint32
	entsize   uint64
	addralign uint64
}

func pack(buf *bytes.Buffer, v interface{}) error {
	return struc.PackWithOrder(buf, v, binary.LittleEndian)
}

func align(buf *bytes.Buffer, n int) {
	for buf.Len()%n != 0 {
		buf.WriteByte(0)
	}
}

func (e *Elf) is64() bool {
	return e.Class != elf.ELFCLASS32
}

func (e *Elf) symtab(syms []ElfSymbol, index map[string]int) ([]byte, []byte, error) {
	names := newStrtab()
	var out bytes.Buffer
	// index 0 is the null symbol
	all := append([]ElfSymbol{{}}, syms...)
	for _, s := range all {
		shndx := uint16(elf.SHN_UNDEF)
		if s.Section != "" {
			i, ok := index[s.Section]
			if !ok {
				return nil, nil, errors.Errorf("symbol %s: no section %s", s.Name, s.Section)
			}
			shndx = uint16(i)
		}
		info := elf.ST_INFO(s.Bind, s.Type)
		var err error
		if e.is64() {
			err = pack(&out, &elfSym64{Name: names.add(s.Name), Info: info, Shndx: shndx, Value: s.Value, Size: s.Size})
		} else {
			err = pack(&out, &elfSym32{Name: names.add(s.Name), Info: info, Shndx: shndx, Value: uint32(s.Value), Size: uint32(s.Size)})
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return out.Bytes(), names.buf.Bytes(), nil
}

func (e *Elf) Bytes() ([]byte, error) {
	symSize, shdrSize, ehdrSize := uint64(24), 64, 64
	if !e.is64() {
		symSize, shdrSize, ehdrSize = 16, 40, 52
	}
	index := make(map[string]int)
	shdrs := []elfShdr{{}}
	for _, s := range e.Sections {
		size := s.Size
		if size == 0 {
			size = uint64(len(s.Data))
		}
		index[s.Name] = len(shdrs)
		shdrs = append(shdrs, elfShdr{name: s.Name, typ: s.Type, flags: s.Flags, addr: s.Addr, data: s.Data, size: size, addralign: 1})
	}
	addTable := func(name string, typ elf.SectionType, strName string, syms []ElfSymbol) error {
		data, strs, err := e.symtab(syms, index)
		if err != nil {
			return err
		}
		link := uint32(len(shdrs) + 1)
		shdrs = append(shdrs,
			elfShdr{name: name, typ: typ, data: data, size: uint64(len(data)), link: link, info: 1, entsize: symSize, addralign: 8},
			elfShdr{name: strName, typ: elf.SHT_STRTAB, data: strs, size: uint64(len(strs)), addralign: 1},
		)
		return nil
	}
	if e.Symbols != nil {
		if err := addTable(".symtab", elf.SHT_SYMTAB, ".strtab", e.Symbols); err != nil {
			return nil, err
		}
	}
	if e.DynSymbols != nil {
		if err := addTable(".dynsym", elf.SHT_DYNSYM, ".dynstr", e.DynSymbols); err != nil {
			return nil, err
		}
	}
	shstr := newStrtab()
	nameOffs := make([]uint32, len(shdrs)+1)
	for i, s := range shdrs {
		nameOffs[i] = shstr.add(s.name)
	}
	nameOffs[len(shdrs)] = shstr.add(".shstrtab")
	shdrs = append(shdrs, elfShdr{name: ".shstrtab", typ: elf.SHT_STRTAB, data: shstr.buf.Bytes(), size: uint64(shstr.buf.Len()), addralign: 1})

	var body bytes.Buffer
	body.Write(make([]byte, ehdrSize))
	offsets := make([]uint64, len(shdrs))
	for i, s := range shdrs {
		if i == 0 || s.typ == elf.SHT_NOBITS {
			continue
		}
		align(&body, 8)
		offsets[i] = uint64(body.Len())
		body.Write(s.data)
	}
	align(&body, 8)
	shoff := uint64(body.Len())
	for i, s := range shdrs {
		var err error
		if e.is64() {
			err = pack(&body, &elfSection64{
				Name: nameOffs[i], Type: uint32(s.typ), Flags: uint64(s.flags), Addr: s.addr,
				Offset: offsets[i], Size: s.size, Link: s.link, Info: s.info,
				Addralign: s.addralign, Entsize: s.entsize,
			})
		} else {
			err = pack(&body, &elfSection32{
				Name: nameOffs[i], Type: uint32(s.typ), Flags: uint32(s.flags), Addr: uint32(s.addr),
				Offset: uint32(offsets[i]), Size: uint32(s.size), Link: s.link, Info: s.info,
				Addralign: uint32(s.addralign), Entsize: uint32(s.entsize),
			})
		}
		if err != nil {
			return nil, err
		}
	}

	var ident [16]byte
	copy(ident[:], "\x7fELF")
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	if !e.is64() {
		ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	}
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	typ := e.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}
	var hdr bytes.Buffer
	var err error
	if e.is64() {
		err = pack(&hdr, &elfHeader64{
			Ident: ident, Type: uint16(typ), Machine: uint16(e.Machine), Version: uint32(elf.EV_CURRENT),
			Entry: e.Entry, Shoff: shoff, Ehsize: uint16(ehdrSize), Shentsize: uint16(shdrSize),
			Shnum: uint16(len(shdrs)), Shstrndx: uint16(len(shdrs) - 1),
		})
	} else {
		err = pack(&hdr, &elfHeader32{
			Ident: ident, Type: uint16(typ), Machine: uint16(e.Machine), Version: uint32(elf.EV_CURRENT),
			Entry: uint32(e.Entry), Shoff: uint32(shoff), Ehsize: uint16(ehdrSize), Shentsize: uint16(shdrSize),
			Shnum: uint16(len(shdrs)), Shstrndx: uint16(len(shdrs) - 1),
		})
	}
	if err != nil {
		return nil, err
	}
	out := body.Bytes()
	copy(out, hdr.Bytes())
	return out, nil
}
