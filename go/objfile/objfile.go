// Package objfile answers primitive structural queries about object files:
// container flavour, target machine, entry address, symbol tables and sections.
// It knows nothing about which of those a caller considers interesting.
package objfile

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotObject     = errors.New("file format not recognized")
	ErrNotIdentified = errors.New("object format has not been checked")
	ErrShortBuffer   = errors.New("symbol buffer too small")
)

type Flavour int

const (
	FlavourUnknown Flavour = iota
	FlavourELF
	FlavourCOFF
	FlavourMachO
)

func (f Flavour) String() string {
	switch f {
	case FlavourELF:
		return "elf"
	case FlavourCOFF:
		return "coff"
	case FlavourMachO:
		return "mach-o"
	default:
		return "unknown"
	}
}

type Machine int

const (
	MachUnknown Machine = iota
	MachI386
	MachX86_64
	MachX64_32
	MachARM
	MachAArch64
	MachMIPS
	MachPPC
	MachPPC64
)

type ArchInfo struct {
	Mach          Machine
	PrintableName string
}

type SymbolFlags uint32

const (
	SymLocal SymbolFlags = 1 << iota
	SymGlobal
	SymWeak
	SymFunction
	SymObject
	SymSection
	SymFile
	SymUndefined
	SymDynamic
)

type Symbol struct {
	Name  string
	Value uint64
	Flags SymbolFlags
}

type SectionFlags uint32

const (
	SecAlloc SectionFlags = 1 << iota
	SecLoad
	SecReadOnly
	SecCode
	SecData
	SecHasContents
	SecDebugging
)

// Section describes one section as the file declares it. Contents are only
// read through File.SectionContents.
type Section struct {
	Name  string
	Index int
	Flags SectionFlags
	VMA   uint64
	Size  uint64

	r io.ReaderAt
}

// File is an opened object file. CheckFormat must succeed before any other
// query returns meaningful data.
type File interface {
	io.Closer
	Name() string
	CheckFormat() error
	Flavour() Flavour
	TargetName() string
	StartAddress() uint64
	ArchInfo() ArchInfo
	// SymtabUpperBound returns the number of records CanonicalizeSymtab
	// needs room for. Zero means there is no symbol table.
	SymtabUpperBound() (int, error)
	CanonicalizeSymtab(buf []Symbol) (int, error)
	DynamicSymtabUpperBound() (int, error)
	CanonicalizeDynamicSymtab(buf []Symbol) (int, error)
	Sections() []*Section
	// SectionContents fills buf from the section's contents starting at off.
	SectionContents(sec *Section, buf []byte, off uint64) error
}

// object is implemented once per container format.
type object interface {
	flavour() Flavour
	targetName() string
	startAddress() uint64
	archInfo() ArchInfo
	symtab() ([]Symbol, error)
	dynamicSymtab() ([]Symbol, error)
	sections() []*Section
}

type format struct {
	name  string
	match func(r io.ReaderAt) bool
	open  func(r io.ReaderAt) (object, error)
}

var (
	initOnce sync.Once
	formats  []format
)

func initialize() {
	formats = []format{
		{"elf", MatchElf, openElf},
		{"pe", MatchPE, openPE},
		{"coff", MatchCOFF, openPE},
		{"mach-o", MatchMachO, openMachO},
		{"fat", MatchFat, openFat},
	}
}

// Open opens path for reading. The format is not inspected until CheckFormat.
func Open(path string) (File, error) {
	initOnce.Do(initialize)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to stat file")
	}
	if stat.IsDir() {
		f.Close()
		return nil, errors.Errorf("%s: is a directory", path)
	}
	return &file{name: path, r: f, c: f, obj: nullObject{}}, nil
}

// NewFile wraps r, which must stay readable until the File is closed.
func NewFile(name string, r io.ReaderAt) File {
	initOnce.Do(initialize)
	f := &file{name: name, r: r, obj: nullObject{}}
	if c, ok := r.(io.Closer); ok {
		f.c = c
	}
	return f
}

type file struct {
	name string
	r    io.ReaderAt
	c    io.Closer
	obj  object
	ok   bool

	symCache, dynCache []Symbol
}

func (f *file) Name() string { return f.name }

func (f *file) Close() error {
	if f.c == nil {
		return nil
	}
	err := f.c.Close()
	f.c = nil
	return err
}

func (f *file) CheckFormat() error {
	if f.ok {
		return nil
	}
	for _, ff := range formats {
		if !ff.match(f.r) {
			continue
		}
		obj, err := ff.open(f.r)
		if err != nil {
			return errors.Wrapf(ErrNotObject, "%s: %s: %v", f.name, ff.name, err)
		}
		f.obj = obj
		f.ok = true
		return nil
	}
	return errors.Wrap(ErrNotObject, f.name)
}

func (f *file) Flavour() Flavour     { return f.obj.flavour() }
func (f *file) TargetName() string   { return f.obj.targetName() }
func (f *file) StartAddress() uint64 { return f.obj.startAddress() }
func (f *file) ArchInfo() ArchInfo   { return f.obj.archInfo() }
func (f *file) Sections() []*Section { return f.obj.sections() }

func (f *file) SymtabUpperBound() (int, error) {
	if !f.ok {
		return -1, ErrNotIdentified
	}
	if f.symCache == nil {
		syms, err := f.obj.symtab()
		if err != nil {
			return -1, err
		}
		f.symCache = append([]Symbol{}, syms...)
	}
	return len(f.symCache), nil
}

func (f *file) CanonicalizeSymtab(buf []Symbol) (int, error) {
	if _, err := f.SymtabUpperBound(); err != nil {
		return -1, err
	}
	return canonicalize(buf, f.symCache)
}

func (f *file) DynamicSymtabUpperBound() (int, error) {
	if !f.ok {
		return -1, ErrNotIdentified
	}
	if f.dynCache == nil {
		syms, err := f.obj.dynamicSymtab()
		if err != nil {
			return -1, err
		}
		f.dynCache = append([]Symbol{}, syms...)
	}
	return len(f.dynCache), nil
}

func (f *file) CanonicalizeDynamicSymtab(buf []Symbol) (int, error) {
	if _, err := f.DynamicSymtabUpperBound(); err != nil {
		return -1, err
	}
	return canonicalize(buf, f.dynCache)
}

func canonicalize(buf, syms []Symbol) (int, error) {
	if len(buf) < len(syms) {
		return -1, errors.Wrapf(ErrShortBuffer, "need %d, have %d", len(syms), len(buf))
	}
	return copy(buf, syms), nil
}

func (f *file) SectionContents(sec *Section, buf []byte, off uint64) error {
	if !f.ok {
		return ErrNotIdentified
	}
	if sec == nil || sec.r == nil {
		return errors.New("section has no contents")
	}
	if off+uint64(len(buf)) > sec.Size {
		return errors.Errorf("read of %d bytes at 0x%x exceeds section %s (size 0x%x)", len(buf), off, sec.Name, sec.Size)
	}
	n, err := sec.r.ReadAt(buf, int64(off))
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "short read of section %s", sec.Name)
}

// nullObject stands in until CheckFormat identifies the file.
type nullObject struct{}

func (nullObject) flavour() Flavour                 { return FlavourUnknown }
func (nullObject) targetName() string               { return "" }
func (nullObject) startAddress() uint64             { return 0 }
func (nullObject) archInfo() ArchInfo               { return ArchInfo{Mach: MachUnknown, PrintableName: "unknown"} }
func (nullObject) symtab() ([]Symbol, error)        { return nil, ErrNotIdentified }
func (nullObject) dynamicSymtab() ([]Symbol, error) { return nil, ErrNotIdentified }
func (nullObject) sections() []*Section             { return nil }
