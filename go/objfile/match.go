package objfile

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

var (
	elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}
	dosMagic = []byte{0x4d, 0x5a}
	peMagic  = []byte{0x50, 0x45, 0x00, 0x00}
	fatMagic = []byte{0xca, 0xfe, 0xba, 0xbe}
)

var machoMagics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
}

// machines a bare COFF object may start with
var coffMachines = map[uint16]bool{
	0x014c: true, // i386
	0x8664: true, // amd64
	0x01c4: true, // armnt
	0xaa64: true, // arm64
}

type elfIdent struct {
	Magic   [4]byte
	Class   uint8
	Data    uint8
	Version uint8
	ABI     uint8
	Pad     [8]byte
}

type dosHeader struct {
	Magic  [2]byte
	Pad    [58]byte
	Lfanew uint32
}

type coffMachine struct {
	Machine uint16
}

func unpackAt(r io.ReaderAt, i interface{}, at int64) error {
	size, err := struc.Sizeof(i)
	if err != nil {
		return err
	}
	return struc.UnpackWithOrder(io.NewSectionReader(r, at, int64(size)), i, binary.LittleEndian)
}

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}

func MatchElf(r io.ReaderAt) bool {
	var ident elfIdent
	if err := unpackAt(r, &ident, 0); err != nil {
		return false
	}
	if !bytes.Equal(ident.Magic[:], elfMagic) {
		return false
	}
	return (ident.Class == 1 || ident.Class == 2) && (ident.Data == 1 || ident.Data == 2)
}

func MatchPE(r io.ReaderAt) bool {
	var dos dosHeader
	if err := unpackAt(r, &dos, 0); err != nil {
		return false
	}
	if !bytes.Equal(dos.Magic[:], dosMagic) {
		return false
	}
	sig := make([]byte, 4)
	if _, err := r.ReadAt(sig, int64(dos.Lfanew)); err != nil {
		return false
	}
	return bytes.Equal(sig, peMagic)
}

// MatchCOFF matches a bare COFF object, which has no DOS stub.
func MatchCOFF(r io.ReaderAt) bool {
	var hdr coffMachine
	if err := unpackAt(r, &hdr, 0); err != nil {
		return false
	}
	return coffMachines[hdr.Machine]
}

func MatchMachO(r io.ReaderAt) bool {
	magic := getMagic(r)
	for _, check := range machoMagics {
		if bytes.Equal(magic, check) {
			return true
		}
	}
	return false
}

func MatchFat(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r), fatMagic)
}
