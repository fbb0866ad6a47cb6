// Package loader reads an ELF or PE executable into a format-agnostic
// description: container and architecture, entry point, code and data
// sections with their contents, and function symbols.
package loader

import (
	"github.com/lunixbochs/binload/go/models"
	"github.com/lunixbochs/binload/go/objfile"
)

type Type int

const (
	TypeAuto Type = iota
	TypeELF
	TypePE
)

func (t Type) String() string {
	switch t {
	case TypeELF:
		return "elf"
	case TypePE:
		return "pe"
	default:
		return "auto"
	}
}

type Arch int

const (
	ArchNone Arch = iota
	ArchX86
)

func (a Arch) String() string {
	if a == ArchX86 {
		return "x86"
	}
	return "none"
}

// Backend opens files for the loader to inspect.
type Backend interface {
	Open(path string) (objfile.File, error)
}

type BackendFunc func(path string) (objfile.File, error)

func (f BackendFunc) Open(path string) (objfile.File, error) { return f(path) }

var DefaultBackend Backend = BackendFunc(objfile.Open)

type image struct {
	filename string
	typ      Type
	typeStr  string
	arch     Arch
	archStr  string
	bits     int
	entry    uint64
	sections []Section
	symbols  []Symbol
}

// Binary describes one executable. It is empty until a successful Init, and
// read-only afterwards.
type Binary struct {
	image
	valid bool

	config  *models.Config
	backend Backend
}

func NewBinary(config *models.Config) *Binary {
	return NewBinaryBackend(DefaultBackend, config)
}

func NewBinaryBackend(backend Backend, config *models.Config) *Binary {
	if config == nil {
		config = &models.Config{}
	}
	config.Init()
	return &Binary{config: config, backend: backend}
}

// Open creates and initializes a Binary in one step.
func Open(path string, typ Type, config *models.Config) (*Binary, error) {
	b := NewBinary(config)
	if err := b.Init(path, typ); err != nil {
		return nil, err
	}
	return b, nil
}

func LoadFile(path string) (*Binary, error) {
	return Open(path, TypeAuto, nil)
}

// Init loads path. typ is only a hint; the detected container always wins.
// Once a Binary is valid, further calls succeed without doing anything.
func (b *Binary) Init(path string, typ Type) error {
	return b.load(path, typ)
}

// TryInit is Init without the error detail.
func (b *Binary) TryInit(path string, typ Type) bool {
	return b.load(path, typ) == nil
}

func (b *Binary) Filename() string { return b.filename }
func (b *Binary) Type() Type       { return b.typ }
func (b *Binary) TypeStr() string  { return b.typeStr }
func (b *Binary) Arch() Arch       { return b.arch }
func (b *Binary) ArchStr() string  { return b.archStr }
func (b *Binary) Bits() int        { return b.bits }
func (b *Binary) Entry() uint64    { return b.entry }
func (b *Binary) Valid() bool      { return b.valid }

func (b *Binary) Sections() []Section {
	return append([]Section(nil), b.sections...)
}

func (b *Binary) Symbols() []Symbol {
	return append([]Symbol(nil), b.symbols...)
}

// TextSection returns the first section named ".text".
func (b *Binary) TextSection() (Section, bool) {
	return b.Section(".text")
}

func (b *Binary) Section(name string) (Section, bool) {
	for _, s := range b.sections {
		if s.name == name {
			return s, true
		}
	}
	return Section{}, false
}

func (b *Binary) SectionAt(addr uint64) (Section, bool) {
	for _, s := range b.sections {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Section{}, false
}

// Symbolicate finds the closest function symbol at or below addr in the same
// section, and the distance from it.
func (b *Binary) Symbolicate(addr uint64) (result Symbol, distance uint64, ok bool) {
	sec, found := b.SectionAt(addr)
	if !found {
		return
	}
	for _, sym := range b.symbols {
		if sym.Addr > addr || !sec.Contains(sym.Addr) {
			continue
		}
		if !ok || sym.Addr > result.Addr {
			result, ok = sym, true
		}
	}
	if ok {
		distance = addr - result.Addr
	}
	return
}
