// Package demux drives a single pass over one or two barcoded sequence
// streams, classifies each record against a barcode table, and routes it to
// per-sample output files through a Router.
package demux

import (
	"errors"
	"fmt"
	"io"

	"fxdemux/barcode"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// ErrUnpairedInput is returned when paired input streams yield unequal record
// counts. This is fatal for the run.
var ErrUnpairedInput = errors.New("unpaired input: forward and reverse files have unequal record counts")

// State of a Demultiplexer. A run moves Idle -> Running -> Finished|Failed.
type State int

const (
	Idle State = iota
	Running
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordReader yields sequence records one at a time, returning io.EOF on
// exhaustion. *fastx.Reader satisfies it.
type RecordReader interface {
	Read() (*fastx.Record, error)
}

// NewFileReader opens a FASTA/FASTQ file, plain or compressed, for record
// reading.
func NewFileReader(file string) (*fastx.Reader, error) {
	return fastx.NewReader(seq.DNAredundant, file, fastx.DefaultIDRegexp)
}

// Stats are the run totals accumulated by a Demultiplexer. Counts are per
// fragment: one per record in single-end mode, one per pair in paired-end
// mode, so Unmatched plus the sum of Counts always equals Total.
type Stats struct {
	Counts    []int64 // per table entry, in table order
	Unmatched int64
	Total     int64
}

// Demultiplexer orchestrates one demultiplexing run. It is the only component
// holding state across records.
type Demultiplexer struct {
	table       *barcode.Table
	router      *Router
	fwd         RecordReader
	rev         RecordReader // nil in single-end mode
	maxMismatch int

	// Progress, when set, is called with the running fragment count as
	// records flow. It exists for the caller's progress display; the engine
	// keeps no global state.
	Progress func(total int64)

	state State
	stats Stats
}

// New returns an idle Demultiplexer. rev must be nil for single-end input.
func New(table *barcode.Table, router *Router, fwd, rev RecordReader, maxMismatch int) *Demultiplexer {
	return &Demultiplexer{
		table:       table,
		router:      router,
		fwd:         fwd,
		rev:         rev,
		maxMismatch: maxMismatch,
		state:       Idle,
		stats:       Stats{Counts: make([]int64, len(table.Entries))},
	}
}

// State reports the current run state.
func (d *Demultiplexer) State() State { return d.state }

// Run performs the full pass. Every opened sink is closed before Run returns,
// on the success path and on every failure path. The first fatal error aborts
// the run; a record matching no barcode is not an error and lands in the
// unmatched bucket.
func (d *Demultiplexer) Run() (Stats, error) {
	d.state = Running
	err := d.run()
	cerr := d.router.CloseAll()
	if err == nil {
		err = cerr
	}
	if err != nil {
		d.state = Failed
		return d.stats, err
	}
	d.state = Finished
	return d.stats, nil
}

func (d *Demultiplexer) run() error {
	for {
		recF, errF := d.fwd.Read()

		if d.rev == nil {
			if errF == io.EOF {
				return nil
			}
			if errF != nil {
				return fmt.Errorf("reading forward input: %v", errF)
			}
			if err := d.route(recF, nil); err != nil {
				return err
			}
			continue
		}

		recR, errR := d.rev.Read()
		switch {
		case errF == io.EOF && errR == io.EOF:
			return nil
		case errF == io.EOF || errR == io.EOF:
			return ErrUnpairedInput
		case errF != nil:
			return fmt.Errorf("reading forward input: %v", errF)
		case errR != nil:
			return fmt.Errorf("reading reverse input: %v", errR)
		}
		if err := d.route(recF, recR); err != nil {
			return err
		}
	}
}

// route classifies one fragment on its forward read and hands it (and its
// mate, when present) to the router. The mate is never reclassified.
func (d *Demultiplexer) route(recF, recR *fastx.Record) error {
	idx := d.table.Classify(recF.Seq.Seq, d.maxMismatch)

	if err := d.router.WriteFwd(idx, recF); err != nil {
		return err
	}
	if recR != nil {
		if err := d.router.WriteRev(idx, recR); err != nil {
			return err
		}
	}

	if idx == barcode.Unmatched {
		d.stats.Unmatched++
	} else {
		d.stats.Counts[idx]++
	}
	d.stats.Total++
	if d.Progress != nil {
		d.Progress(d.stats.Total)
	}
	return nil
}
