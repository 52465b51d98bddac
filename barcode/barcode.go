// Package barcode holds the barcode table used to assign reads to samples
// and the mismatch-tolerant prefix matching it relies on.
package barcode

import (
	"errors"
	"fmt"
	"github.com/vertgenlab/gonomics/fileio"
	"strings"
)

var (
	// ErrInvalidTable is returned when a barcode table line cannot be parsed,
	// contains an empty barcode, or repeats a barcode.
	ErrInvalidTable = errors.New("invalid barcode table")
	// ErrEmptyTable is returned when no usable entries remain after parsing.
	ErrEmptyTable = errors.New("empty barcode table")
	// ErrSeqTooShort is returned when a read is shorter than the barcode it
	// is compared against.
	ErrSeqTooShort = errors.New("sequence shorter than barcode")
)

// Entry is one line of the barcode table: a barcode sequence and the output
// file(s) reads carrying it are routed to. Rev is empty in single-end mode.
type Entry struct {
	Bc  []byte
	Fwd string
	Rev string
}

// Table is an ordered barcode table. Order is declaration order in the input
// file and is the tie-break rule during classification.
type Table struct {
	Entries []Entry
	Paired  bool
}

// Unmatched is the classification result for reads matching no barcode.
const Unmatched int = -1

// Read parses a tab-delimited barcode table from filename. Lines hold
// barcode<TAB>file for single-end tables and barcode<TAB>fwdFile<TAB>revFile
// for paired-end tables. Blank lines and #-prefixed lines are skipped.
// Barcodes are upper-cased; duplicates are rejected.
func Read(filename string, paired bool) (*Table, error) {
	t := &Table{Paired: paired}
	want := 2
	if paired {
		want = 3
	}

	seen := make(map[string]bool)
	var line string
	var done bool
	in := fileio.EasyOpen(filename)
	defer in.Close()
	for line, done = fileio.EasyNextRealLine(in); !done; line, done = fileio.EasyNextRealLine(in) {
		// EasyNextRealLine drops # comments but passes blank lines through
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != want {
			return nil, fmt.Errorf("%w: expected %d tab-separated fields, got %d in line %q", ErrInvalidTable, want, len(fields), line)
		}
		bc := strings.ToUpper(strings.TrimSpace(fields[0]))
		if bc == "" {
			return nil, fmt.Errorf("%w: empty barcode in line %q", ErrInvalidTable, line)
		}
		if seen[bc] {
			return nil, fmt.Errorf("%w: duplicate barcode %q", ErrInvalidTable, bc)
		}
		seen[bc] = true

		e := Entry{Bc: []byte(bc), Fwd: fields[1]}
		if paired {
			e.Rev = fields[2]
		}
		t.Entries = append(t.Entries, e)
	}

	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, filename)
	}
	return t, nil
}

// Classify returns the index of the first entry, in table order, whose
// barcode matches the leading bases of read within maxMismatch mismatches,
// or Unmatched when no entry qualifies. Entries longer than the read can
// never match. In paired-end mode only the forward read is classified; the
// reverse mate follows wherever its forward mate was routed.
func (t *Table) Classify(read []byte, maxMismatch int) int {
	for i := range t.Entries {
		bc := t.Entries[i].Bc
		if len(bc) > len(read) {
			continue
		}
		if hamming(read[:len(bc)], bc) <= maxMismatch {
			return i
		}
	}
	return Unmatched
}

// Distance counts mismatched positions between the leading len(bc) bases of
// read and bc, case-insensitively. Insertions and deletions are never
// considered: this is a fixed-window Hamming distance, not an edit distance.
// Returns ErrSeqTooShort when the read cannot cover the barcode.
func Distance(read, bc []byte) (int, error) {
	if len(read) < len(bc) {
		return 0, fmt.Errorf("%w: read length %d, barcode length %d", ErrSeqTooShort, len(read), len(bc))
	}
	return hamming(read[:len(bc)], bc), nil
}

// hamming assumes len(a) == len(b).
func hamming(a, b []byte) int {
	var d int
	for i := range b {
		if fold(a[i]) != fold(b[i]) {
			d++
		}
	}
	return d
}

func fold(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
