package objtest

import (
	"bytes"
	"debug/pe"
	"sort"
)

const (
	peFileAlign    = 0x200
	peSectionAlign = 0x1000
)

type PESection struct {
	Name            string
	Characteristics uint32
	Data            []byte
	// VirtualSize defaults to len(Data).
	VirtualSize uint32
}

type PESymbol struct {
	Name string
	// Value is relative to the start of Section.
	Value uint32
	// Section is 1-based; 0 is undefined.
	Section int16
	Type    uint16
	Class   uint8
}

type PEExport struct {
	Name string
	RVA  uint32
}

// PE describes a PE image, or a bare COFF object when Object is set.
// Section i is placed at RVA SectionRVA(i); exports get an extra .edata
// section after the last one.
type PE struct {
	Machine   uint16
	Plus      bool
	Object    bool
	ImageBase uint64
	Entry     uint32
	Sections  []PESection
	Symbols   []PESymbol
	Exports   []PEExport
}

func SectionRVA(i int) uint32 {
	if i < 0 {
		return 0
	}
	return uint32(peSectionAlign * (i + 1))
}

type peDosHeader struct {
	Magic  [2]byte
	Pad    [58]byte
	Lfanew uint32
}

type peFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type peOptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [32]uint32
}

type peOptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [32]uint32
}

type peSectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type peSymbol struct {
	Name               [8]byte
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

type peExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

type peU32 struct{ V uint32 }
type peU16 struct{ V uint16 }

// edata lays out an export directory to be mapped at rva.
func (p *PE) edata(rva uint32) ([]byte, error) {
	exports := append([]PEExport{}, p.Exports...)
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	n := uint32(len(exports))
	dirSize := uint32(40)
	funcsAt := rva + dirSize
	namesAt := funcsAt + 4*n
	ordsAt := namesAt + 4*n
	strAt := ordsAt + 2*n

	var buf, strs bytes.Buffer
	if err := pack(&buf, &peExportDirectory{
		Base: 1, NumberOfFunctions: n, NumberOfNames: n,
		AddressOfFunctions: funcsAt, AddressOfNames: namesAt, AddressOfNameOrdinals: ordsAt,
	}); err != nil {
		return nil, err
	}
	for _, e := range exports {
		if err := pack(&buf, &peU32{e.RVA}); err != nil {
			return nil, err
		}
	}
	for _, e := range exports {
		if err := pack(&buf, &peU32{strAt + uint32(strs.Len())}); err != nil {
			return nil, err
		}
		strs.WriteString(e.Name)
		strs.WriteByte(0)
	}
	for i := range exports {
		if err := pack(&buf, &peU16{uint16(i)}); err != nil {
			return nil, err
		}
	}
	buf.Write(strs.Bytes())
	return buf.Bytes(), nil
}

func (p *PE) Bytes() ([]byte, error) {
	sections := append([]PESection{}, p.Sections...)
	var exportVA, exportSize uint32
	if len(p.Exports) > 0 {
		rva := SectionRVA(len(sections))
		data, err := p.edata(rva)
		if err != nil {
			return nil, err
		}
		sections = append(sections, PESection{
			Name:            ".edata",
			Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
			Data:            data,
		})
		exportVA, exportSize = rva, uint32(len(data))
	}

	var optSize int
	var hdrStart int
	if !p.Object {
		hdrStart = 0x40 + 4
		optSize = 240
		if !p.Plus {
			optSize = 224
		}
	}
	headersEnd := hdrStart + 20 + optSize + 40*len(sections)
	sizeOfHeaders := alignUp(headersEnd, peFileAlign)

	// raw data
	var raw bytes.Buffer
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		if len(s.Data) == 0 {
			continue
		}
		offsets[i] = uint32(sizeOfHeaders + raw.Len())
		raw.Write(s.Data)
		align(&raw, peFileAlign)
	}

	// symbols and string table
	var syms bytes.Buffer
	var symPtr uint32
	if len(p.Symbols) > 0 {
		symPtr = uint32(sizeOfHeaders + raw.Len())
		var strs bytes.Buffer
		for _, s := range p.Symbols {
			var name [8]byte
			if len(s.Name) <= 8 {
				copy(name[:], s.Name)
			} else {
				off := uint32(4 + strs.Len())
				name[4] = byte(off)
				name[5] = byte(off >> 8)
				name[6] = byte(off >> 16)
				name[7] = byte(off >> 24)
				strs.WriteString(s.Name)
				strs.WriteByte(0)
			}
			if err := pack(&syms, &peSymbol{Name: name, Value: s.Value, SectionNumber: s.Section, Type: s.Type, StorageClass: s.Class}); err != nil {
				return nil, err
			}
		}
		if err := pack(&syms, &peU32{uint32(4 + strs.Len())}); err != nil {
			return nil, err
		}
		syms.Write(strs.Bytes())
	}

	var out bytes.Buffer
	if !p.Object {
		var dos peDosHeader
		copy(dos.Magic[:], "MZ")
		dos.Lfanew = 0x40
		if err := pack(&out, &dos); err != nil {
			return nil, err
		}
		out.WriteString("PE\x00\x00")
	}
	characteristics := uint16(pe.IMAGE_FILE_EXECUTABLE_IMAGE)
	if p.Object {
		characteristics = 0
	}
	if err := pack(&out, &peFileHeader{
		Machine:              p.Machine,
		NumberOfSections:     uint16(len(sections)),
		PointerToSymbolTable: symPtr,
		NumberOfSymbols:      uint32(len(p.Symbols)),
		SizeOfOptionalHeader: uint16(optSize),
		Characteristics:      characteristics,
	}); err != nil {
		return nil, err
	}
	sizeOfImage := SectionRVA(len(sections))
	if !p.Object {
		var err error
		if p.Plus {
			oh := peOptionalHeader64{
				Magic: 0x20b, AddressOfEntryPoint: p.Entry, ImageBase: p.ImageBase,
				SectionAlignment: peSectionAlign, FileAlignment: peFileAlign,
				MajorSubsystemVersion: 6, SizeOfImage: sizeOfImage, SizeOfHeaders: uint32(sizeOfHeaders),
				Subsystem: 3, NumberOfRvaAndSizes: 16,
			}
			oh.DataDirectory[2*pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = exportVA
			oh.DataDirectory[2*pe.IMAGE_DIRECTORY_ENTRY_EXPORT+1] = exportSize
			err = pack(&out, &oh)
		} else {
			oh := peOptionalHeader32{
				Magic: 0x10b, AddressOfEntryPoint: p.Entry, ImageBase: uint32(p.ImageBase),
				SectionAlignment: peSectionAlign, FileAlignment: peFileAlign,
				MajorSubsystemVersion: 6, SizeOfImage: sizeOfImage, SizeOfHeaders: uint32(sizeOfHeaders),
				Subsystem: 3, NumberOfRvaAndSizes: 16,
			}
			oh.DataDirectory[2*pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = exportVA
			oh.DataDirectory[2*pe.IMAGE_DIRECTORY_ENTRY_EXPORT+1] = exportSize
			err = pack(&out, &oh)
		}
		if err != nil {
			return nil, err
		}
	}
	for i, s := range sections {
		var name [8]byte
		copy(name[:], s.Name)
		vsize := s.VirtualSize
		if vsize == 0 {
			vsize = uint32(len(s.Data))
		}
		var rva uint32
		if !p.Object {
			rva = SectionRVA(i)
		}
		if err := pack(&out, &peSectionHeader{
			Name:             name,
			VirtualSize:      vsize,
			VirtualAddress:   rva,
			SizeOfRawData:    uint32(alignUp(len(s.Data), peFileAlign)),
			PointerToRawData: offsets[i],
			Characteristics:  s.Characteristics,
		}); err != nil {
			return nil, err
		}
	}
	align(&out, peFileAlign)
	out.Write(raw.Bytes())
	out.Write(syms.Bytes())
	return out.Bytes(), nil
}

func alignUp(n, to int) int {
	return (n + to - 1) / to * to
}
