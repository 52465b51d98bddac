package demux

import (
	"os"
	"path/filepath"
	"testing"

	"fxdemux/barcode"
	"fxdemux/codec"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

func fqRecord(name, bases, qual string) *fastx.Record {
	return &fastx.Record{
		Name: []byte(name),
		Seq:  &seq.Seq{Seq: []byte(bases), Qual: []byte(qual)},
	}
}

func TestRouterLazySinks(t *testing.T) {
	out := t.TempDir()
	table := &barcode.Table{Entries: []barcode.Entry{
		{Bc: []byte("AAAA"), Fwd: "x.fq"},
		{Bc: []byte("CCCC"), Fwd: "y.fq"},
	}}

	router := NewRouter(out, table, codec.None, 1, codec.None, codec.None)
	// write only to destination 0; destination 1 and the unmatched bucket
	// must never be opened
	if err := router.WriteFwd(0, fqRecord("r1", "AAAAGT", "IIIIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.WriteFwd(0, fqRecord("r2", "AAAACT", "IIIIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.CloseAll(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "x.fq" {
		t.Error("expected only x.fq to be created, got", entries)
	}

	b, err := os.ReadFile(filepath.Join(out, "x.fq"))
	if err != nil {
		t.Fatal(err)
	}
	want := "@r1\nAAAAGT\n+\nIIIIII\n@r2\nAAAACT\n+\nIIIIII\n"
	if string(b) != want {
		t.Errorf("sink reuse broke serialization:\ngot  %q\nwant %q", string(b), want)
	}
}

func TestRouterKeepsExistingExtension(t *testing.T) {
	out := t.TempDir()
	table := &barcode.Table{Entries: []barcode.Entry{
		{Bc: []byte("AAAA"), Fwd: "x.fq.gz"},
	}}

	router := NewRouter(out, table, codec.Gzip, 1, codec.None, codec.None)
	if err := router.WriteFwd(0, fqRecord("r1", "AAAAGT", "IIIIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.CloseAll(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(out, "x.fq.gz")); err != nil {
		t.Error("declared extension should not be doubled:", err)
	}
}

func TestRouterCloseAllTwice(t *testing.T) {
	out := t.TempDir()
	table := &barcode.Table{Entries: []barcode.Entry{{Bc: []byte("AAAA"), Fwd: "x.fq"}}}

	router := NewRouter(out, table, codec.None, 1, codec.None, codec.None)
	if err := router.WriteFwd(0, fqRecord("r1", "AAAAGT", "IIIIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.CloseAll(); err != nil {
		t.Fatal(err)
	}
	// second close must be a no-op, not a double close
	if err := router.CloseAll(); err != nil {
		t.Error("repeated CloseAll should not error:", err)
	}
}

func TestRouterUnmatchedNames(t *testing.T) {
	out := t.TempDir()
	table := &barcode.Table{Paired: true, Entries: []barcode.Entry{
		{Bc: []byte("AAAA"), Fwd: "x_R1.fq", Rev: "x_R2.fq"},
	}}

	router := NewRouter(out, table, codec.None, 1, codec.None, codec.None)
	if err := router.WriteFwd(barcode.Unmatched, fqRecord("r1/1", "GGGG", "IIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.WriteRev(barcode.Unmatched, fqRecord("r1/2", "TTTT", "IIII")); err != nil {
		t.Fatal(err)
	}
	if err := router.CloseAll(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"unknown_R1.fq", "unknown_R2.fq"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Error("missing unmatched bucket file:", err)
		}
	}
}
