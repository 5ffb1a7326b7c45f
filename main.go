package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/KitchenMishap/grayhuff/jobs"
)

const usage = `usage: grayhuff <command> [flags] <file...>

commands:
  compress    compress one PGM image into a standalone archive
  decompress  restore the PGM image from an archive
  roundtrip   compress, decode again and verify bit-for-bit equality
  batch       compress many PGM images concurrently

run 'grayhuff <command> -h' for the command's flags
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "compress":
		err = runCompress(os.Args[2:])
	case "decompress":
		err = runDecompress(os.Args[2:])
	case "roundtrip":
		err = runRoundTrip(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "grayhuff: unknown command %q\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "grayhuff: %v\n", err)
		os.Exit(1)
	}
}

func runCompress(args []string) error {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	out := fs.String("o", "", "output archive path (default input + "+jobs.DefaultExt+")")
	withZstd := fs.Bool("zstd", false, "also report a zstd baseline size")
	hist := fs.String("hist", "", "write the symbol histogram to this PGM path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("compress wants exactly one input image")
	}

	in := fs.Arg(0)
	target := *out
	if target == "" {
		target = in + jobs.DefaultExt
	}
	stats, err := jobs.CompressFile(in, target, *withZstd, *hist)
	if err != nil {
		return err
	}
	jobs.Report(stats)
	return nil
}

func runDecompress(args []string) error {
	fs := flag.NewFlagSet("decompress", flag.ExitOnError)
	out := fs.String("o", "", "output image path (default strips "+jobs.DefaultExt+")")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("decompress wants exactly one archive")
	}

	in := fs.Arg(0)
	target := *out
	if target == "" {
		if !strings.HasSuffix(in, jobs.DefaultExt) {
			return fmt.Errorf("cannot derive an output name from %q, use -o", in)
		}
		target = strings.TrimSuffix(in, jobs.DefaultExt)
	}
	return jobs.DecompressFile(in, target)
}

func runRoundTrip(args []string) error {
	fs := flag.NewFlagSet("roundtrip", flag.ExitOnError)
	artifact := fs.String("artifact", "", "keep the raw artifact at this path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("roundtrip wants exactly one input image")
	}

	stats, err := jobs.RoundTrip(fs.Arg(0), *artifact)
	if err != nil {
		return err
	}
	jobs.Report(stats)
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	outDir := fs.String("outdir", "", "directory for the archives (default alongside inputs)")
	workers := fs.Int("workers", 0, "worker count (default scales with CPUs)")
	withZstd := fs.Bool("zstd", false, "also report zstd baseline sizes")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("batch wants at least one input image")
	}
	return jobs.Batch(fs.Args(), *outDir, *workers, *withZstd)
}
