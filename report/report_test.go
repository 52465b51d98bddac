package report

import (
	"path/filepath"
	"strings"
	"testing"

	"fxdemux/barcode"
	"fxdemux/demux"
)

func testSummary() *Summary {
	table := &barcode.Table{Entries: []barcode.Entry{
		{Bc: []byte("AAAA"), Fwd: "x.fq"},
		{Bc: []byte("CCCC"), Fwd: "y.fq"},
		{Bc: []byte("GGGG"), Fwd: "z.fq"},
	}}
	return New(table, demux.Stats{Counts: []int64{6, 2, 1}, Unmatched: 1, Total: 10})
}

func TestSummaryRows(t *testing.T) {
	s := testSummary()
	if len(s.Rows) != 3 {
		t.Fatal("expected 3 rows, got", len(s.Rows))
	}
	// rows keep table order
	if s.Rows[0].Barcode != "AAAA" || s.Rows[2].Barcode != "GGGG" {
		t.Error("row order wrong:", s.Rows)
	}
	if s.Rows[0].Percent != 60 {
		t.Error("expected 60 percent for AAAA, got", s.Rows[0].Percent)
	}
}

func TestSummaryWrite(t *testing.T) {
	var sb strings.Builder
	if err := testSummary().Write(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{"AAAA", "x.fq", "unmatched", "total", "60.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryStats(t *testing.T) {
	s := testSummary()
	if got := s.MeanPerSample(); got != 3 {
		t.Error("expected mean 3, got", got)
	}
	if got := s.MedianPerSample(); got != 2 {
		t.Error("expected median 2, got", got)
	}
}

func TestSummaryGraph(t *testing.T) {
	if out := testSummary().Graph(); !strings.Contains(out, "reads per sample") {
		t.Error("graph caption missing:\n", out)
	}
}

func TestSavePlot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "counts.png")
	if err := testSummary().SavePlot(file); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyRun(t *testing.T) {
	table := &barcode.Table{Entries: []barcode.Entry{{Bc: []byte("AAAA"), Fwd: "x.fq"}}}
	s := New(table, demux.Stats{Counts: []int64{0}})
	if s.Rows[0].Percent != 0 {
		t.Error("zero-total run should report 0 percent, got", s.Rows[0].Percent)
	}
}
