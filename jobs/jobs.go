// Package jobs holds the file-level workflows behind the command line.
// The core packages stay pure; everything that touches disk or prints
// lives here.
package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/KitchenMishap/grayhuff/compress"
	"github.com/KitchenMishap/grayhuff/container"
	"github.com/KitchenMishap/grayhuff/graphics"
	"github.com/KitchenMishap/grayhuff/huffman"
	"github.com/KitchenMishap/grayhuff/pgm"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultExt is appended to the image name when no output is given.
const DefaultExt = ".ghf"

// CompressFile reads a PGM image and writes a standalone archive.
// With withZstd the samples are also run through zstd so the report
// can show how a general-purpose codec does on the same data. With a
// histPath the symbol histogram is rendered there as a PGM.
func CompressFile(inPath, outPath string, withZstd bool, histPath string) (*compress.Stats, error) {
	img, err := pgm.ReadFile(inPath)
	if err != nil {
		return nil, err
	}
	res, err := compress.Compress(img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}

	arch := &container.Archive{
		Width:    img.Width,
		Height:   img.Height,
		BitCount: res.BitCount,
		Freqs:    res.Freqs,
		Payload:  res.Payload,
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	if err := container.WriteArchive(f, arch); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	stats := &compress.Stats{
		Samples:   len(img.Pixels),
		Distinct:  res.Freqs.Distinct(),
		TotalBits: res.BitCount,
		InBytes:   fileSize(inPath),
		OutBytes:  fileSize(outPath),
		ZstdBytes: -1,
	}
	if withZstd {
		n, err := zstdSize(img.Pixels)
		if err != nil {
			return nil, err
		}
		stats.ZstdBytes = n
	}
	if histPath != "" {
		if err := pgm.WriteFile(histPath, graphics.Histogram(res.Freqs)); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// DecompressFile rebuilds the tree from the archive's frequency table
// and restores the PGM image.
func DecompressFile(inPath, outPath string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	arch, err := container.ReadArchive(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	var tree *huffman.Tree
	if arch.Freqs.Distinct() > 0 {
		tree, err = huffman.Build(arch.Freqs)
		if err != nil {
			return fmt.Errorf("%s: %w", inPath, err)
		}
	}
	samples, err := compress.Decompress(tree, arch.BitCount, arch.Payload)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	if len(samples) != arch.Width*arch.Height {
		return fmt.Errorf("%s: decoded %d samples for a %dx%d image: %w",
			inPath, len(samples), arch.Width, arch.Height, huffman.ErrCorruptBitstream)
	}

	img := &pgm.Image{Width: arch.Width, Height: arch.Height, Pixels: samples}
	return pgm.WriteFile(outPath, img)
}

// RoundTrip is the closed-loop flow: compress, write the raw artifact,
// read it back, decode with the still-in-memory tree and byte-compare
// against the source image. The artifact is kept when artifactPath is
// given, otherwise it goes through a temp file.
func RoundTrip(inPath, artifactPath string) (*compress.Stats, error) {
	img, err := pgm.ReadFile(inPath)
	if err != nil {
		return nil, err
	}
	res, err := compress.Compress(img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}

	var f *os.File
	remove := false
	if artifactPath == "" {
		f, err = os.CreateTemp("", "grayhuff-*.bin")
		if err != nil {
			return nil, err
		}
		artifactPath = f.Name()
		remove = true
	} else {
		f, err = os.Create(artifactPath)
		if err != nil {
			return nil, err
		}
	}
	if remove {
		defer os.Remove(artifactPath)
	}
	if err := container.WriteRaw(f, res.BitCount, img.Width, img.Height, res.Payload); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	g, err := os.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	bitCount, width, height, payload, err := container.ReadRaw(g)
	g.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifactPath, err)
	}

	samples, err := compress.Decompress(res.Tree, bitCount, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifactPath, err)
	}
	if width != img.Width || height != img.Height || !bytes.Equal(samples, img.Pixels) {
		return nil, fmt.Errorf("%s: round trip does not reproduce the image", inPath)
	}
	println("Round trip OK, images match")

	return &compress.Stats{
		Samples:   len(img.Pixels),
		Distinct:  res.Freqs.Distinct(),
		TotalBits: res.BitCount,
		InBytes:   fileSize(inPath),
		OutBytes:  fileSize(artifactPath),
		ZstdBytes: -1,
	}, nil
}

// Batch compresses many images concurrently. Images are independent,
// so the only thing the workers share is the path channel.
func Batch(paths []string, outDir string, workers int, withZstd bool) error {
	startTime := time.Now()
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 4 {
			workers -= 2 // Some spare for the OS
		}
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	p := message.NewPrinter(language.English) // For commas between thousands
	var totalIn, totalOut atomic.Int64

	pathChan := make(chan string)
	g, ctx := errgroup.WithContext(context.Background())

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for path := range pathChan {
				// Check if another worker already failed
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				out := path + DefaultExt
				if outDir != "" {
					out = filepath.Join(outDir, filepath.Base(path)+DefaultExt)
				}
				stats, err := CompressFile(path, out, withZstd, "")
				if err != nil {
					return err
				}
				totalIn.Add(stats.InBytes)
				totalOut.Add(stats.OutBytes)
				if withZstd {
					p.Printf("%s: %d -> %d bytes (zstd %d)\n",
						filepath.Base(path), stats.InBytes, stats.OutBytes, stats.ZstdBytes)
				} else {
					p.Printf("%s: %d -> %d bytes\n", filepath.Base(path), stats.InBytes, stats.OutBytes)
				}
			}
			return nil
		})
	}

	// Feed the channel; workers stop when it is empty and closed
	g.Go(func() error {
		defer close(pathChan)
		for _, path := range paths {
			select {
			case pathChan <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(startTime)
	fmt.Printf("[%5.1f sec] batch of %d finished\n", elapsed.Seconds(), len(paths))
	in, out := totalIn.Load(), totalOut.Load()
	p.Printf("Total: %d -> %d bytes", in, out)
	if in > 0 {
		fmt.Printf(" (%.1f%% saved)", 100*(1-float64(out)/float64(in)))
	}
	fmt.Println()
	return nil
}

// Report prints one compression's numbers.
func Report(s *compress.Stats) {
	p := message.NewPrinter(language.English) // For commas between thousands
	p.Printf("Samples:          %d (%d distinct values)\n", s.Samples, s.Distinct)
	p.Printf("Encoded bits:     %d\n", s.TotalBits)
	p.Printf("Original bytes:   %d\n", s.InBytes)
	p.Printf("Compressed bytes: %d\n", s.OutBytes)
	if s.ZstdBytes >= 0 {
		p.Printf("Zstd baseline:    %d bytes\n", s.ZstdBytes)
	}
	fmt.Printf("Ratio %.3f, %.1f%% saved\n", s.Ratio(), s.Saving())
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// zstdSize measures how a general-purpose codec does on the same
// samples, for the comparison line in reports.
func zstdSize(samples []byte) (int64, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return 0, err
	}
	if _, err := enc.Write(samples); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}
