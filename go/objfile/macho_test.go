package objfile

import (
	"bytes"
	"debug/macho"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/internal/objtest"
)

func TestMachO(t *testing.T) {
	p, err := (&objtest.MachO{
		Cpu:      macho.CpuAmd64,
		Addr:     0x100000000,
		Text:     []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3},
		EntryOff: 0x100,
	}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	f := NewFile("a.out", bytes.NewReader(p))
	if err := f.CheckFormat(); err != nil {
		t.Fatal(err)
	}
	if f.Flavour() != FlavourMachO || f.TargetName() != "mach-o-x86-64" {
		t.Fatalf("got %s %s", f.Flavour(), f.TargetName())
	}
	if f.ArchInfo().Mach != MachX86_64 {
		t.Fatalf("bad arch %+v", f.ArchInfo())
	}
	if f.StartAddress() != 0x100000100 {
		t.Fatalf("bad entry %#x", f.StartAddress())
	}
	text := findSection(f, "__text")
	if text == nil || text.Flags&SecCode == 0 || text.Size != 6 {
		t.Fatalf("bad __text %+v", text)
	}
	buf := make([]byte, text.Size)
	if err := f.SectionContents(text, buf, 0); err != nil {
		t.Fatal(err)
	}
	if buf[len(buf)-1] != 0xc3 {
		t.Fatalf("bad __text contents %x", buf)
	}
	if n, err := f.SymtabUpperBound(); err != nil || n != 0 {
		t.Fatalf("expected no symbols, got %d %v", n, err)
	}
}

func TestFatRejected(t *testing.T) {
	p := []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 0}
	if err := NewFile("fat", bytes.NewReader(p)).CheckFormat(); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestMachOShortMain(t *testing.T) {
	p, err := (&objtest.MachO{
		Cpu:       macho.CpuAmd64,
		Addr:      0x100000000,
		Text:      []byte{0xc3},
		ShortMain: true,
	}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewFile("a.out", bytes.NewReader(p)).CheckFormat(); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}
