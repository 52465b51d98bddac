// Package report renders the end-of-run demultiplexing summary.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fxdemux/barcode"
	"fxdemux/demux"

	"github.com/guptarohit/asciigraph"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Row is the summary line for one barcode table entry.
type Row struct {
	Barcode string
	File    string
	Count   int64
	Percent float64
}

// Summary is the per-destination account of one finished run. Rows keep
// barcode table order; the unmatched bucket is reported separately.
type Summary struct {
	Rows      []Row
	Unmatched int64
	Total     int64
}

// New builds a Summary from a run's stats and the table it ran against.
func New(table *barcode.Table, stats demux.Stats) *Summary {
	s := &Summary{Unmatched: stats.Unmatched, Total: stats.Total}
	for i := range table.Entries {
		s.Rows = append(s.Rows, Row{
			Barcode: string(table.Entries[i].Bc),
			File:    table.Entries[i].Fwd,
			Count:   stats.Counts[i],
			Percent: percent(stats.Counts[i], stats.Total),
		})
	}
	return s
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Write renders the summary as a tab-aligned table.
func (s *Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "barcode\tfile\treads\tpercent")
	for _, r := range s.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\n", r.Barcode, r.File, r.Count, r.Percent)
	}
	fmt.Fprintf(tw, "unmatched\t-\t%d\t%.2f%%\n", s.Unmatched, percent(s.Unmatched, s.Total))
	fmt.Fprintf(tw, "total\t-\t%d\t\n", s.Total)
	return tw.Flush()
}

func (s *Summary) counts() []float64 {
	counts := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		counts[i] = float64(r.Count)
	}
	return counts
}

// MeanPerSample is the mean read count over the table's samples.
func (s *Summary) MeanPerSample() float64 {
	if len(s.Rows) == 0 {
		return 0
	}
	return stat.Mean(s.counts(), nil)
}

// MedianPerSample is the median read count over the table's samples.
func (s *Summary) MedianPerSample() float64 {
	if len(s.Rows) == 0 {
		return 0
	}
	counts := s.counts()
	slices.Sort(counts)
	return stat.Quantile(0.5, stat.Empirical, counts, nil)
}

// Graph renders the per-sample counts as a terminal graph.
func (s *Summary) Graph() string {
	return asciigraph.Plot(s.counts(), asciigraph.Height(8), asciigraph.Precision(0), asciigraph.Caption("reads per sample, table order"))
}

// SavePlot writes a barplot of per-sample read counts to an image file.
func (s *Summary) SavePlot(file string) error {
	p := plot.New()
	p.Title.Text = "Reads per sample"
	p.Y.Label.Text = "Reads"

	bars, err := plotter.NewBarChart(plotter.Values(s.counts()), vg.Points(20))
	if err != nil {
		return err
	}
	p.Add(bars)

	names := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		names[i] = r.Barcode
	}
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.9
	p.X.Tick.Label.XAlign = -0.9

	return p.Save(20*vg.Centimeter, 12*vg.Centimeter, file)
}
