package dump

import (
	"bytes"
	"debug/pe"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/binload/go/internal/objtest"
	"github.com/lunixbochs/binload/go/loader"
	"github.com/lunixbochs/binload/go/models"
)

func loadPE(t *testing.T) *loader.Binary {
	t.Helper()
	p, err := (&objtest.PE{
		Machine:   pe.IMAGE_FILE_MACHINE_I386,
		ImageBase: 0x400000,
		Entry:     objtest.SectionRVA(0),
		Sections: []objtest.PESection{
			{Name: ".text", Characteristics: pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ, Data: []byte{0x55, 0x89, 0xe5, 0x5d, 0xc3}},
			{Name: ".rdata", Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ, Data: []byte("Hello, PE world!\x00")},
		},
	}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "a.exe")
	if err := os.WriteFile(path, p, 0644); err != nil {
		t.Fatal(err)
	}
	b, err := loader.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDumpText(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(models.NewPrinter(&buf, false), loadPE(t), "", 16); err != nil {
		t.Fatal(err)
	}
	want := "0x00401000: 55 89 e5 5d c3 " + strings.Repeat("   ", 11) + "| U..].\n"
	if buf.String() != want {
		t.Fatalf("got  %q\nwant %q", buf.String(), want)
	}
}

func TestDumpNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(models.NewPrinter(&buf, false), loadPE(t), ".rdata", 8); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 || !strings.HasSuffix(lines[0], "| Hello, P") {
		t.Fatalf("bad dump:\n%s", buf.String())
	}
}

func TestDumpMissing(t *testing.T) {
	var buf bytes.Buffer
	err := Dump(models.NewPrinter(&buf, false), loadPE(t), ".reloc", 16)
	if !errors.Is(err, ErrNoSection) {
		t.Fatalf("expected ErrNoSection, got %v", err)
	}
	if buf.String() != "no matching section '.reloc'\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestRunMissingSection(t *testing.T) {
	var buf bytes.Buffer
	if err := run(models.NewPrinter(&buf, false), loadPE(t), []string{".reloc"}, 16); err != nil {
		t.Fatalf("missing section should not fail the command: %v", err)
	}
	if buf.String() != "no matching section '.reloc'\n" {
		t.Fatalf("got %q", buf.String())
	}
	buf.Reset()
	if err := run(models.NewPrinter(&buf, false), loadPE(t), nil, 16); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "0x00401000: 55 89 e5") {
		t.Fatalf("bad default dump %q", buf.String())
	}
}
