package objtest

import (
	"bytes"
	"debug/macho"
)

// MachO describes a 64-bit little-endian Mach-O executable with a single
// __TEXT segment holding one __text section.
type MachO struct {
	Cpu      macho.Cpu
	Addr     uint64
	Text     []byte
	EntryOff uint64

	// ShortMain truncates LC_MAIN to its cmd/cmdsize words.
	ShortMain bool
}

type machoHeader64 struct {
	Magic    uint32
	Cpu      uint32
	SubCpu   uint32
	Type     uint32
	Ncmd     uint32
	Cmdsz    uint32
	Flags    uint32
	Reserved uint32
}

type machoSegment64 struct {
	Cmd     uint32
	Len     uint32
	Name    [16]byte
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot uint32
	Prot    uint32
	Nsect   uint32
	Flag    uint32
}

type machoSection64 struct {
	Name     [16]byte
	Seg      [16]byte
	Addr     uint64
	Size     uint64
	Offset   uint32
	Align    uint32
	Reloff   uint32
	Nreloc   uint32
	Flags    uint32
	Reserve1 uint32
	Reserve2 uint32
	Reserve3 uint32
}

type machoLoadCmd struct {
	Cmd uint32
	Len uint32
}

type machoEntryPoint struct {
	Cmd       uint32
	Len       uint32
	EntryOff  uint64
	StackSize uint64
}

func (m *MachO) Bytes() ([]byte, error) {
	const (
		hdrSize   = 32
		segSize   = 72
		sectSize  = 80
		entrySize = 24
	)
	mainSize := entrySize
	if m.ShortMain {
		mainSize = 8
	}
	cmdsz := segSize + sectSize + mainSize
	textOff := uint64(alignUp(hdrSize+cmdsz, 16))

	var out bytes.Buffer
	if err := pack(&out, &machoHeader64{
		Magic: macho.Magic64, Cpu: uint32(m.Cpu), Type: uint32(macho.TypeExec),
		Ncmd: 2, Cmdsz: uint32(cmdsz),
	}); err != nil {
		return nil, err
	}
	seg := machoSegment64{
		Cmd: uint32(macho.LoadCmdSegment64), Len: segSize + sectSize,
		Addr: m.Addr, Memsz: textOff + uint64(len(m.Text)), Offset: 0, Filesz: textOff + uint64(len(m.Text)),
		Maxprot: 5, Prot: 5, Nsect: 1,
	}
	copy(seg.Name[:], "__TEXT")
	if err := pack(&out, &seg); err != nil {
		return nil, err
	}
	sect := machoSection64{
		Addr: m.Addr + textOff, Size: uint64(len(m.Text)), Offset: uint32(textOff),
		Flags: 0x80000400,
	}
	copy(sect.Name[:], "__text")
	copy(sect.Seg[:], "__TEXT")
	if err := pack(&out, &sect); err != nil {
		return nil, err
	}
	var entry interface{} = &machoEntryPoint{Cmd: 0x80000028, Len: entrySize, EntryOff: m.EntryOff}
	if m.ShortMain {
		entry = &machoLoadCmd{Cmd: 0x80000028, Len: 8}
	}
	if err := pack(&out, entry); err != nil {
		return nil, err
	}
	align(&out, 16)
	out.Write(m.Text)
	return out.Bytes(), nil
}
