package objfile

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/internal/objtest"
)

func findSection(f File, name string) *Section {
	for _, s := range f.Sections() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func TestElfTargets(t *testing.T) {
	cases := []struct {
		class   elf.Class
		machine elf.Machine
		mach    Machine
		arch    string
		target  string
	}{
		{elf.ELFCLASS32, elf.EM_386, MachI386, "i386", "elf32-i386"},
		{elf.ELFCLASS64, elf.EM_X86_64, MachX86_64, "i386:x86-64", "elf64-x86-64"},
		{elf.ELFCLASS32, elf.EM_X86_64, MachX64_32, "i386:x64-32", "elf32-x86-64"},
		{elf.ELFCLASS64, elf.EM_AARCH64, MachAArch64, "aarch64", "elf64-little"},
		{elf.ELFCLASS32, elf.EM_ARM, MachARM, "arm", "elf32-little"},
	}
	for _, c := range cases {
		f := elfFixture(t, &objtest.Elf{Class: c.class, Machine: c.machine, Entry: 0x1234})
		info := f.ArchInfo()
		if info.Mach != c.mach || info.PrintableName != c.arch {
			t.Fatalf("%s: got arch %+v", c.target, info)
		}
		if f.TargetName() != c.target {
			t.Fatalf("got target %s, want %s", f.TargetName(), c.target)
		}
		if f.StartAddress() != 0x1234 {
			t.Fatalf("%s: bad entry %#x", c.target, f.StartAddress())
		}
	}
}

func TestElfSectionFlags(t *testing.T) {
	f := elfFixture(t, &objtest.Elf{
		Class:   elf.ELFCLASS64,
		Machine: elf.EM_X86_64,
		Sections: []objtest.ElfSection{
			{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x1000, Data: []byte{0xc3}},
			{Name: ".rodata", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC, Addr: 0x2000, Data: []byte("ro")},
			{Name: ".data", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x3000, Data: []byte("rw")},
			{Name: ".bss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x4000, Size: 16},
			{Name: ".debug_info", Type: elf.SHT_PROGBITS, Data: []byte{1, 2}},
		},
	})
	check := func(name string, want, notWant SectionFlags) *Section {
		s := findSection(f, name)
		if s == nil {
			t.Fatalf("missing section %s", name)
		}
		if s.Flags&want != want || s.Flags&notWant != 0 {
			t.Fatalf("%s: flags %#x", name, s.Flags)
		}
		return s
	}
	check(".text", SecCode|SecAlloc|SecLoad|SecReadOnly, SecData)
	check(".rodata", SecData|SecReadOnly, SecCode)
	check(".data", SecData|SecLoad, SecReadOnly|SecCode)
	bss := check(".bss", SecAlloc, SecLoad|SecData|SecCode|SecHasContents)
	check(".debug_info", SecDebugging|SecHasContents, SecData|SecCode|SecAlloc)

	buf := make([]byte, bss.Size)
	for i := range buf {
		buf[i] = 0xff
	}
	if err := f.SectionContents(bss, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, make([]byte, 16)) {
		t.Fatalf("nobits section is not zero filled: %x", buf)
	}
}

func TestElfRelocatable(t *testing.T) {
	f := elfFixture(t, &objtest.Elf{
		Class:   elf.ELFCLASS64,
		Machine: elf.EM_X86_64,
		Type:    elf.ET_REL,
		Sections: []objtest.ElfSection{
			{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x100, Data: make([]byte, 16)},
		},
		Symbols: []objtest.ElfSymbol{
			{Name: "f", Value: 8, Type: elf.STT_FUNC, Bind: elf.STB_LOCAL, Section: ".text"},
			{Name: "ifunc", Value: 4, Type: elf.STT_LOOS, Bind: elf.STB_GLOBAL, Section: ".text"},
			{Name: "ext", Type: elf.STT_FUNC, Bind: elf.STB_WEAK},
		},
	})
	n, err := f.SymtabUpperBound()
	if err != nil {
		t.Fatal(err)
	}
	syms := make([]Symbol, n)
	if _, err := f.CanonicalizeSymtab(syms); err != nil {
		t.Fatal(err)
	}
	if syms[0].Value != 0x108 || syms[0].Flags&SymLocal == 0 {
		t.Fatalf("bad section-relative symbol %+v", syms[0])
	}
	if syms[1].Value != 0x104 || syms[1].Flags&SymFunction == 0 {
		t.Fatalf("bad ifunc symbol %+v", syms[1])
	}
	if syms[2].Flags&(SymUndefined|SymWeak) != SymUndefined|SymWeak {
		t.Fatalf("bad undefined weak symbol %+v", syms[2])
	}
}

func TestElfDynamic(t *testing.T) {
	f := elfFixture(t, &objtest.Elf{
		Class:   elf.ELFCLASS32,
		Machine: elf.EM_386,
		Type:    elf.ET_DYN,
		Sections: []objtest.ElfSection{
			{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x1000, Data: make([]byte, 8)},
		},
		DynSymbols: []objtest.ElfSymbol{
			{Name: "api", Value: 0x1000, Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Section: ".text"},
		},
	})
	if n, err := f.SymtabUpperBound(); err != nil || n != 0 {
		t.Fatalf("expected empty symtab, got %d %v", n, err)
	}
	n, err := f.DynamicSymtabUpperBound()
	if err != nil || n != 1 {
		t.Fatalf("expected one dynamic symbol, got %d %v", n, err)
	}
	syms := make([]Symbol, n)
	if _, err := f.CanonicalizeDynamicSymtab(syms); err != nil {
		t.Fatal(err)
	}
	if syms[0].Name != "api" || syms[0].Flags&(SymDynamic|SymFunction) != SymDynamic|SymFunction {
		t.Fatalf("bad dynamic symbol %+v", syms[0])
	}
}

func TestElfCoreRejected(t *testing.T) {
	p, err := (&objtest.Elf{Class: elf.ELFCLASS64, Machine: elf.EM_X86_64, Type: elf.ET_CORE}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewFile("core", bytes.NewReader(p)).CheckFormat(); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}
