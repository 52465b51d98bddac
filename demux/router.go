package demux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fxdemux/barcode"
	"fxdemux/codec"

	"github.com/shenwei356/bio/seqio/fastx"
)

// ErrWrite is returned when a record cannot be written to its output sink.
// Write failures are fatal for the run and are never retried.
var ErrWrite = errors.New("output write failed")

const unknownBase = "unknown"

// Router owns one output sink per distinct destination and serializes records
// to them. Sinks are created lazily on first write and live until CloseAll.
// A destination is either a barcode table index or barcode.Unmatched.
//
// Execution is single threaded, so the sink maps are unsynchronized. If runs
// are ever parallelized, writes to one destination must stay serialized.
type Router struct {
	outDir string
	table  *barcode.Table
	level  int

	// output format override; codec.None means mirror the input format
	override codec.Format
	// compression formats sniffed on the input streams, mirrored on output
	fwdInput codec.Format
	revInput codec.Format

	fwd map[int]*sink
	rev map[int]*sink
}

// NewRouter returns a Router writing into outDir. override selects one output
// format for every sink; pass codec.None to mirror the compression format of
// the corresponding input stream instead. fwdInput and revInput are the
// sniffed input formats (revInput is ignored in single-end mode).
func NewRouter(outDir string, table *barcode.Table, override codec.Format, level int, fwdInput, revInput codec.Format) *Router {
	return &Router{
		outDir:   outDir,
		table:    table,
		level:    level,
		override: override,
		fwdInput: fwdInput,
		revInput: revInput,
		fwd:      make(map[int]*sink),
		rev:      make(map[int]*sink),
	}
}

// WriteFwd appends rec to the forward sink for the destination idx.
func (r *Router) WriteFwd(idx int, rec *fastx.Record) error {
	s, err := r.sinkFor(r.fwd, idx, true, rec)
	if err != nil {
		return err
	}
	return s.write(rec)
}

// WriteRev appends rec to the reverse sink for the destination idx. The
// destination is always the mirror of the forward mate's classification.
func (r *Router) WriteRev(idx int, rec *fastx.Record) error {
	s, err := r.sinkFor(r.rev, idx, false, rec)
	if err != nil {
		return err
	}
	return s.write(rec)
}

// CloseAll flushes and closes every opened sink exactly once, returning the
// first error encountered. It must run on every exit path of a run.
func (r *Router) CloseAll() error {
	var first error
	for _, m := range []map[int]*sink{r.fwd, r.rev} {
		for _, s := range m {
			if err := s.close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (r *Router) sinkFor(m map[int]*sink, idx int, forward bool, rec *fastx.Record) (*sink, error) {
	if s, ok := m[idx]; ok {
		return s, nil
	}

	format := r.override
	if format == codec.None {
		if forward {
			format = r.fwdInput
		} else {
			format = r.revInput
		}
	}

	name := r.fileName(idx, forward, rec)
	if format != codec.None && !strings.HasSuffix(name, format.Extension()) {
		name += format.Extension()
	}

	s, err := newSink(filepath.Join(r.outDir, name), format, r.level)
	if err != nil {
		return nil, err
	}
	m[idx] = s
	return s, nil
}

// fileName resolves the bare output file name for a destination: the name
// declared in the barcode table, or the fixed unknown-bucket convention with
// an extension matching the record format of the stream.
func (r *Router) fileName(idx int, forward bool, rec *fastx.Record) string {
	if idx != barcode.Unmatched {
		if forward {
			return r.table.Entries[idx].Fwd
		}
		return r.table.Entries[idx].Rev
	}

	name := unknownBase
	if r.table.Paired {
		if forward {
			name += "_R1"
		} else {
			name += "_R2"
		}
	}
	if len(rec.Seq.Qual) > 0 {
		return name + ".fq"
	}
	return name + ".fa"
}

// sink is one open output file with its codec layer and write buffer.
type sink struct {
	path   string
	file   *os.File
	comp   io.WriteCloser
	w      *bufio.Writer
	closed bool
}

func newSink(path string, format codec.Format, level int) (*sink, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrWrite, path, err)
	}
	cw, err := codec.NewWriter(fh, format, level)
	if err != nil {
		fh.Close()
		return nil, err
	}
	return &sink{path: path, file: fh, comp: cw, w: bufio.NewWriter(cw)}, nil
}

// write appends rec in the textual record format it arrived in: FASTQ when
// quality is present, FASTA otherwise. The record content is not modified.
func (s *sink) write(rec *fastx.Record) error {
	var err error
	if len(rec.Seq.Qual) > 0 {
		err = writeLine(s.w, '@', rec.Name)
		if err == nil {
			err = writeSeqLine(s.w, rec.Seq.Seq)
		}
		if err == nil {
			_, err = s.w.WriteString("+\n")
		}
		if err == nil {
			err = writeSeqLine(s.w, rec.Seq.Qual)
		}
	} else {
		err = writeLine(s.w, '>', rec.Name)
		if err == nil {
			err = writeSeqLine(s.w, rec.Seq.Seq)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, s.path, err)
	}
	return nil
}

func writeLine(w *bufio.Writer, marker byte, b []byte) error {
	if err := w.WriteByte(marker); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func writeSeqLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// close flushes and releases the sink. Safe to call more than once; only the
// first call does work.
func (s *sink) close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.w.Flush()
	if cerr := s.comp.Close(); err == nil {
		err = cerr
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrWrite, s.path, err)
	}
	return nil
}
