package objfile

import (
	"bytes"
	"debug/pe"
	"testing"

	"github.com/lunixbochs/binload/go/internal/objtest"
)

const (
	scnText = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ
	scnData = pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE
	scnBss  = pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE
)

func peFixture(t *testing.T, p *objtest.PE) File {
	t.Helper()
	data, err := p.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	f := NewFile("fixture.exe", bytes.NewReader(data))
	if err := f.CheckFormat(); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestPEImage(t *testing.T) {
	f := peFixture(t, &objtest.PE{
		Machine:   pe.IMAGE_FILE_MACHINE_AMD64,
		Plus:      true,
		ImageBase: 0x140000000,
		Entry:     objtest.SectionRVA(0) + 0x10,
		Sections: []objtest.PESection{
			{Name: ".text", Characteristics: scnText, Data: []byte{0x48, 0x31, 0xc0, 0xc3}},
			{Name: ".data", Characteristics: scnData, Data: []byte("data")},
			{Name: ".bss", Characteristics: scnBss, VirtualSize: 0x80},
		},
	})
	if f.Flavour() != FlavourCOFF {
		t.Fatalf("bad flavour %s", f.Flavour())
	}
	if f.TargetName() != "pei-x86-64" {
		t.Fatalf("bad target %s", f.TargetName())
	}
	if info := f.ArchInfo(); info.Mach != MachX86_64 || info.PrintableName != "i386:x86-64" {
		t.Fatalf("bad arch %+v", info)
	}
	if f.StartAddress() != 0x140001010 {
		t.Fatalf("bad entry %#x", f.StartAddress())
	}

	text := findSection(f, ".text")
	if text == nil || text.VMA != 0x140001000 || text.Size != 4 || text.Flags&SecCode == 0 {
		t.Fatalf("bad .text %+v", text)
	}
	buf := make([]byte, text.Size)
	if err := f.SectionContents(text, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x48, 0x31, 0xc0, 0xc3}) {
		t.Fatalf("bad .text contents %x", buf)
	}
	data := findSection(f, ".data")
	if data == nil || data.Flags&SecData == 0 || data.Flags&SecReadOnly != 0 {
		t.Fatalf("bad .data %+v", data)
	}
	bss := findSection(f, ".bss")
	if bss == nil || bss.Size != 0x80 || bss.Flags&(SecData|SecCode) != 0 || bss.Flags&SecAlloc == 0 {
		t.Fatalf("bad .bss %+v", bss)
	}
	if n, err := f.DynamicSymtabUpperBound(); err != nil || n != 0 {
		t.Fatalf("expected no exports, got %d %v", n, err)
	}
}

func TestPEExports(t *testing.T) {
	f := peFixture(t, &objtest.PE{
		Machine:   pe.IMAGE_FILE_MACHINE_I386,
		ImageBase: 0x10000000,
		Sections: []objtest.PESection{
			{Name: ".text", Characteristics: scnText, Data: make([]byte, 0x20)},
			{Name: ".data", Characteristics: scnData, Data: make([]byte, 0x10)},
		},
		Exports: []objtest.PEExport{
			{Name: "Zeta", RVA: objtest.SectionRVA(0) + 0x10},
			{Name: "Alpha", RVA: objtest.SectionRVA(0)},
			{Name: "Global", RVA: objtest.SectionRVA(1) + 4},
		},
	})
	if f.TargetName() != "pei-i386" {
		t.Fatalf("bad target %s", f.TargetName())
	}
	n, err := f.DynamicSymtabUpperBound()
	if err != nil {
		t.Fatal(err)
	}
	syms := make([]Symbol, n)
	if _, err := f.CanonicalizeDynamicSymtab(syms); err != nil {
		t.Fatal(err)
	}
	want := []struct {
		name  string
		value uint64
		fn    bool
	}{
		{"Alpha", 0x10001000, true},
		{"Global", 0x10002004, false},
		{"Zeta", 0x10001010, true},
	}
	if len(syms) != len(want) {
		t.Fatalf("got %d exports, want %d", len(syms), len(want))
	}
	for i, w := range want {
		s := syms[i]
		if s.Name != w.name || s.Value != w.value || (s.Flags&SymFunction != 0) != w.fn || s.Flags&SymDynamic == 0 {
			t.Fatalf("export %d: got %+v", i, s)
		}
	}
}

func TestCOFFObject(t *testing.T) {
	f := peFixture(t, &objtest.PE{
		Machine: pe.IMAGE_FILE_MACHINE_I386,
		Object:  true,
		Sections: []objtest.PESection{
			{Name: ".text", Characteristics: scnText, Data: make([]byte, 0x10)},
		},
		Symbols: []objtest.PESymbol{
			{Name: ".text", Section: 1, Class: 3},
			{Name: "_function_name", Value: 4, Section: 1, Type: 0x20, Class: 2},
			{Name: "_import", Type: 0x20, Class: 2},
		},
	})
	if f.TargetName() != "pe-i386" {
		t.Fatalf("bad target %s", f.TargetName())
	}
	if f.StartAddress() != 0 {
		t.Fatalf("object has entry %#x", f.StartAddress())
	}
	n, err := f.SymtabUpperBound()
	if err != nil {
		t.Fatal(err)
	}
	syms := make([]Symbol, n)
	if _, err := f.CanonicalizeSymtab(syms); err != nil {
		t.Fatal(err)
	}
	if len(syms) != 3 {
		t.Fatalf("expected 3 symbols, got %d", len(syms))
	}
	if syms[0].Flags&SymFunction != 0 {
		t.Fatal("section symbol flagged as function")
	}
	if syms[1].Name != "_function_name" || syms[1].Value != 4 || syms[1].Flags&(SymFunction|SymGlobal) != SymFunction|SymGlobal {
		t.Fatalf("bad function symbol %+v", syms[1])
	}
	if syms[2].Flags&SymUndefined == 0 {
		t.Fatalf("import not undefined %+v", syms[2])
	}
}
