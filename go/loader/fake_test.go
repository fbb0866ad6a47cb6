package loader

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/models"
	"github.com/lunixbochs/binload/go/objfile"
)

// fakeFile answers backend queries from fixed tables.
type fakeFile struct {
	flavour  objfile.Flavour
	target   string
	entry    uint64
	arch     objfile.ArchInfo
	checkErr error

	syms, dyn      []objfile.Symbol
	symErr, dynErr error
	// -1 reports a failed size query
	symBound, dynBound int

	secs    []*objfile.Section
	data    map[string][]byte
	readErr map[string]bool

	closed int
}

func newFakeElf64() *fakeFile {
	return &fakeFile{
		flavour: objfile.FlavourELF,
		target:  "elf64-x86-64",
		entry:   0x401000,
		arch:    objfile.ArchInfo{Mach: objfile.MachX86_64, PrintableName: "i386:x86-64"},
		data:    make(map[string][]byte),
	}
}

func (f *fakeFile) addSection(name string, flags objfile.SectionFlags, vma uint64, data []byte) {
	f.secs = append(f.secs, &objfile.Section{Name: name, Index: len(f.secs), Flags: flags, VMA: vma, Size: uint64(len(data))})
	f.data[name] = data
}

func (f *fakeFile) Name() string                 { return "fake" }
func (f *fakeFile) CheckFormat() error           { return f.checkErr }
func (f *fakeFile) Flavour() objfile.Flavour     { return f.flavour }
func (f *fakeFile) TargetName() string           { return f.target }
func (f *fakeFile) StartAddress() uint64         { return f.entry }
func (f *fakeFile) ArchInfo() objfile.ArchInfo   { return f.arch }
func (f *fakeFile) Sections() []*objfile.Section { return f.secs }

func (f *fakeFile) Close() error {
	f.closed++
	return nil
}

func bound(syms []objfile.Symbol, override int, err error) (int, error) {
	if err != nil {
		return -1, err
	}
	if override != 0 {
		return override, nil
	}
	return len(syms), nil
}

func (f *fakeFile) SymtabUpperBound() (int, error) {
	return bound(f.syms, f.symBound, f.symErr)
}

func (f *fakeFile) DynamicSymtabUpperBound() (int, error) {
	return bound(f.dyn, f.dynBound, f.dynErr)
}

func (f *fakeFile) CanonicalizeSymtab(buf []objfile.Symbol) (int, error) {
	return copy(buf, f.syms), nil
}

func (f *fakeFile) CanonicalizeDynamicSymtab(buf []objfile.Symbol) (int, error) {
	return copy(buf, f.dyn), nil
}

func (f *fakeFile) SectionContents(sec *objfile.Section, buf []byte, off uint64) error {
	if f.readErr[sec.Name] {
		return errors.New("short read")
	}
	copy(buf, f.data[sec.Name][off:])
	return nil
}

// fakeBackend hands out one file and counts how often it was asked.
type fakeBackend struct {
	file  *fakeFile
	err   error
	opens int
}

func (b *fakeBackend) Open(path string) (objfile.File, error) {
	b.opens++
	if b.err != nil {
		return nil, b.err
	}
	return b.file, nil
}

func loadFake(f *fakeFile, config *models.Config) (*Binary, *fakeBackend, error) {
	backend := &fakeBackend{file: f}
	b := NewBinaryBackend(backend, config)
	return b, backend, b.Init("fake.bin", TypeAuto)
}
