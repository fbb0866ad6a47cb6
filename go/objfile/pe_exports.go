package objfile

import (
	"bytes"
	"debug/pe"

	"github.com/pkg/errors"
)

// maximum number of export entries we are willing to decode
const peMaxExports = 1 << 20

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

type peExportRVA struct {
	RVA uint32
}

type peExportOrdinal struct {
	Index uint16
}

func (p *peObject) unpackRVA(i interface{}, rva uint32) error {
	r, off, err := p.rvaReader(rva)
	if err != nil {
		return err
	}
	return unpackAt(r, i, off)
}

func (p *peObject) cstring(rva uint32) (string, error) {
	r, off, err := p.rvaReader(rva)
	if err != nil {
		return "", err
	}
	var out []byte
	buf := make([]byte, 64)
	for len(out) < 4096 {
		n, err := r.ReadAt(buf, off)
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "unterminated string at rva %#x", rva)
		}
		out = append(out, buf[:n]...)
		off += int64(n)
	}
	return "", errors.Errorf("string at rva %#x is too long", rva)
}

// readExports decodes the named exports. Entries are returned in name table
// order, which the format requires to be sorted.
func (p *peObject) readExports(dir pe.DataDirectory) ([]Symbol, error) {
	var ed peExportDirectory
	if err := p.unpackRVA(&ed, dir.VirtualAddress); err != nil {
		return nil, err
	}
	if ed.NumberOfNames == 0 {
		return nil, nil
	}
	if ed.NumberOfFunctions > peMaxExports || ed.NumberOfNames > peMaxExports {
		return nil, errors.Errorf("implausible export counts (%d functions, %d names)", ed.NumberOfFunctions, ed.NumberOfNames)
	}
	funcs := make([]peExportRVA, ed.NumberOfFunctions)
	if err := p.unpackRVA(&funcs, ed.AddressOfFunctions); err != nil {
		return nil, errors.Wrap(err, "export address table")
	}
	names := make([]peExportRVA, ed.NumberOfNames)
	if err := p.unpackRVA(&names, ed.AddressOfNames); err != nil {
		return nil, errors.Wrap(err, "export name table")
	}
	ordinals := make([]peExportOrdinal, ed.NumberOfNames)
	if err := p.unpackRVA(&ordinals, ed.AddressOfNameOrdinals); err != nil {
		return nil, errors.Wrap(err, "export ordinal table")
	}
	ret := make([]Symbol, 0, len(names))
	for i, n := range names {
		idx := int(ordinals[i].Index)
		if idx >= len(funcs) {
			return nil, errors.Errorf("export ordinal %d out of range", idx)
		}
		name, err := p.cstring(n.RVA)
		if err != nil {
			return nil, err
		}
		rva := funcs[idx].RVA
		flags := SymGlobal | SymDynamic
		if rva >= dir.VirtualAddress && rva < dir.VirtualAddress+dir.Size {
			// forwarded to another module
			flags |= SymUndefined
		} else if s := p.sectionAt(rva); s != nil && s.Characteristics&(pe.IMAGE_SCN_CNT_CODE|pe.IMAGE_SCN_MEM_EXECUTE) != 0 {
			flags |= SymFunction
		} else {
			flags |= SymObject
		}
		ret = append(ret, Symbol{
			Name:  name,
			Value: p.imageBase + uint64(rva),
			Flags: flags,
		})
	}
	return ret, nil
}
