package loader

import "io"

type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionCode
	SectionData
)

func (k SectionKind) String() string {
	switch k {
	case SectionCode:
		return "CODE"
	case SectionData:
		return "DATA"
	default:
		return "NONE"
	}
}

const unnamedSection = "<unnamed>"

// Section is a loaded code or data section. Its bytes are copied out of the
// file at load time and never change.
type Section struct {
	binary *Binary
	kind   SectionKind
	name   string
	vma    uint64
	bytes  []byte
}

// Binary returns the image the section was loaded from.
func (s Section) Binary() *Binary   { return s.binary }
func (s Section) Kind() SectionKind { return s.kind }
func (s Section) Name() string      { return s.name }
func (s Section) VMA() uint64       { return s.vma }
func (s Section) Size() uint64      { return uint64(len(s.bytes)) }
func (s Section) End() uint64       { return s.vma + s.Size() }
func (s Section) IsCode() bool      { return s.kind == SectionCode }

// Bytes returns a copy of the section contents.
func (s Section) Bytes() []byte {
	return append([]byte(nil), s.bytes...)
}

// ReadAt implements io.ReaderAt over the section contents, with offsets
// relative to the start of the section.
func (s Section) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.bytes)) {
		return 0, io.EOF
	}
	n := copy(p, s.bytes[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s Section) Contains(addr uint64) bool {
	return s.vma <= addr && addr-s.vma < s.Size()
}
