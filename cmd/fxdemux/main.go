// fxdemux assigns barcoded FASTA/FASTQ reads to per-sample output files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"fxdemux/barcode"
	"fxdemux/codec"
	"fxdemux/demux"
	"fxdemux/report"

	"github.com/cheggaaa/pb/v3"
	"github.com/shenwei356/bio/seq"
	"github.com/vertgenlab/gonomics/exception"
)

const version = "0.3.0"

func usage() {
	fmt.Print(
		"fxdemux - barcode demultiplexing for FASTA/FASTQ files\n" +
			"Version: " + version + "\n\n" +
			"Usage:\n" +
			"  fxdemux [options] barcodes.tsv forward.fx [reverse.fx]\n\n" +
			"Input files may be plain or compressed with gzip, bzip2, xz, or zstd.\n" +
			"Giving a reverse file switches to paired-end mode.\n\n" +
			"The barcode table is tab separated, one entry per line:\n" +
			"  barcode<TAB>file.fq                      single-end\n" +
			"  barcode<TAB>file_R1.fq<TAB>file_R2.fq    paired-end\n" +
			"Blank lines and lines starting with # are skipped.\n\n" +
			"Options:\n")
	flag.PrintDefaults()
}

func errExit(err string) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	var err error
	mismatch := flag.Int("m", 0, "maximum number of barcode mismatches")
	outDir := flag.String("o", "fxdemux_out", "output `directory`")
	formatName := flag.String("f", "", "output compression `format` (gz, bz2, xz, zst); default mirrors the input compression")
	level := flag.Int("l", codec.MinLevel, "compression level (1-9); 1 optimizes speed, 9 size")
	force := flag.Bool("force", false, "erase and reuse an existing output directory")
	quiet := flag.Bool("q", false, "suppress progress and summary output")
	plotFile := flag.String("plot", "", "write a barplot of per-sample read counts to `png`")
	graph := flag.Bool("graph", false, "print a terminal graph of per-sample read counts")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 || flag.NArg() > 3 {
		flag.Usage()
		errExit("\nERROR: expected a barcode table, a forward file, and optionally a reverse file")
	}
	barcodeFile := flag.Arg(0)
	fwdFile := flag.Arg(1)
	var revFile string
	if flag.NArg() == 3 {
		revFile = flag.Arg(2)
	}
	paired := revFile != ""

	if *mismatch < 0 {
		errExit("ERROR: -m must be >= 0")
	}
	if *level < codec.MinLevel || *level > codec.MaxLevel {
		errExit(fmt.Sprintf("ERROR: -l must be between %d and %d", codec.MinLevel, codec.MaxLevel))
	}
	for _, file := range []string{barcodeFile, fwdFile, revFile} {
		if file == "" {
			continue
		}
		if _, err = os.Stat(file); err != nil {
			errExit("ERROR: cannot read " + file)
		}
	}

	format := codec.None
	if *formatName != "" {
		format, err = codec.Parse(*formatName)
		if err != nil {
			errExit("ERROR: " + err.Error())
		}
	}

	makeOutDir(*outDir, *force)

	table, err := barcode.Read(barcodeFile, paired)
	if err != nil {
		log.Fatal("ERROR: ", err)
	}
	if !*quiet {
		log.Printf("fxdemux %s: %d barcodes, %d allowed mismatch(es)", version, len(table.Entries), *mismatch)
	}

	fwdInput, err := codec.Detect(fwdFile)
	exception.PanicOnErr(err)
	revInput := codec.None
	if paired {
		revInput, err = codec.Detect(revFile)
		exception.PanicOnErr(err)
	}

	// records are routed verbatim, skip alphabet validation on read
	seq.ValidateSeq = false

	fwd, err := demux.NewFileReader(fwdFile)
	exception.PanicOnErr(err)
	var rev demux.RecordReader
	if paired {
		r, rerr := demux.NewFileReader(revFile)
		exception.PanicOnErr(rerr)
		rev = r
	}

	router := demux.NewRouter(*outDir, table, format, *level, fwdInput, revInput)
	d := demux.New(table, router, fwd, rev, *mismatch)

	var bar *pb.ProgressBar
	if !*quiet {
		bar = pb.Full.Start64(0)
		d.Progress = func(n int64) { bar.SetCurrent(n) }
	}

	stats, err := d.Run()
	if bar != nil {
		bar.SetTotal(stats.Total)
		bar.Finish()
	}
	if err != nil {
		log.Fatal("ERROR: ", err)
	}

	summary := report.New(table, stats)
	if !*quiet {
		err = summary.Write(os.Stdout)
		exception.PanicOnErr(err)
		log.Printf("done: %d fragments, mean %.1f and median %.1f reads per sample, output in %s",
			stats.Total, summary.MeanPerSample(), summary.MedianPerSample(), *outDir)
	}
	if *graph {
		fmt.Println(summary.Graph())
	}
	if *plotFile != "" {
		err = summary.SavePlot(*plotFile)
		exception.PanicOnErr(err)
	}
}

// makeOutDir creates dir, erasing an existing one only when force is set.
func makeOutDir(dir string, force bool) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
		exception.PanicOnErr(err)
		return
	}
	exception.PanicOnErr(err)
	if !info.IsDir() {
		errExit("ERROR: " + dir + " exists and is not a directory")
	}
	if !force {
		errExit("ERROR: output directory " + dir + " already exists; use -force to erase and reuse it")
	}
	err = os.RemoveAll(dir)
	exception.PanicOnErr(err)
	err = os.MkdirAll(dir, 0755)
	exception.PanicOnErr(err)
}
