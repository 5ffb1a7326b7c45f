package jobs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/KitchenMishap/grayhuff/pgm"
)

// writeImage drops a small synthetic PGM into dir and returns its path.
func writeImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := &pgm.Image{Width: width, Height: height, Pixels: make([]byte, width*height)}
	for i := range img.Pixels {
		// A few flat runs and a gradient, so the histogram is lumpy
		switch {
		case i%7 == 0:
			img.Pixels[i] = 200
		case i%3 == 0:
			img.Pixels[i] = 10
		default:
			img.Pixels[i] = byte(i % 256)
		}
	}
	path := filepath.Join(dir, name)
	if err := pgm.WriteFile(path, img); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestCompressThenDecompressFiles(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.pgm", 40, 30)
	archive := filepath.Join(dir, "in.pgm"+DefaultExt)
	restored := filepath.Join(dir, "restored.pgm")

	stats, err := CompressFile(in, archive, false, "")
	if err != nil {
		t.Fatalf("CompressFile: %v", err)
	}
	if stats.Samples != 40*30 {
		t.Errorf("Samples: got %d, want %d", stats.Samples, 40*30)
	}
	if stats.Distinct <= 0 {
		t.Errorf("Distinct: got %d, want > 0", stats.Distinct)
	}
	if stats.OutBytes <= 0 {
		t.Errorf("OutBytes: got %d, want > 0", stats.OutBytes)
	}
	if stats.ZstdBytes != -1 {
		t.Errorf("ZstdBytes without -zstd: got %d, want -1", stats.ZstdBytes)
	}

	if err := DecompressFile(archive, restored); err != nil {
		t.Fatalf("DecompressFile: %v", err)
	}
	want, err := pgm.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pgm.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != want.Width || got.Height != want.Height {
		t.Fatalf("restored %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	if !bytes.Equal(got.Pixels, want.Pixels) {
		t.Fatal("restored pixels differ from the source")
	}
}

func TestCompressFileExtras(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.pgm", 16, 16)
	archive := filepath.Join(dir, "in.ghf")
	hist := filepath.Join(dir, "hist.pgm")

	stats, err := CompressFile(in, archive, true, hist)
	if err != nil {
		t.Fatalf("CompressFile: %v", err)
	}
	if stats.ZstdBytes <= 0 {
		t.Errorf("ZstdBytes with -zstd: got %d, want > 0", stats.ZstdBytes)
	}

	img, err := pgm.ReadFile(hist)
	if err != nil {
		t.Fatalf("reading histogram: %v", err)
	}
	if img.Width != 1024 || img.Height != 256 {
		t.Errorf("histogram %dx%d, want 1024x256", img.Width, img.Height)
	}
}

func TestCompressFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := CompressFile(filepath.Join(dir, "nope.pgm"), filepath.Join(dir, "out.ghf"), false, "")
	if err == nil {
		t.Fatal("expected an error for a missing input file")
	}
}

func TestDecompressFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.ghf")
	if err := os.WriteFile(garbage, []byte("this is not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := DecompressFile(garbage, filepath.Join(dir, "out.pgm")); err == nil {
		t.Fatal("expected an error for a non-archive file")
	}
}

func TestRoundTripKeepsNamedArtifact(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.pgm", 24, 24)
	artifact := filepath.Join(dir, "in.bin")

	stats, err := RoundTrip(in, artifact)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if stats.Samples != 24*24 {
		t.Errorf("Samples: got %d, want %d", stats.Samples, 24*24)
	}
	fi, err := os.Stat(artifact)
	if err != nil {
		t.Fatalf("artifact should be kept: %v", err)
	}
	if fi.Size() != stats.OutBytes {
		t.Errorf("artifact is %d bytes, stats say %d", fi.Size(), stats.OutBytes)
	}
}

func TestRoundTripCleansUpTempArtifact(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "in.pgm", 8, 8)

	stats, err := RoundTrip(in, "")
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if stats.OutBytes <= 0 {
		t.Errorf("OutBytes: got %d, want > 0", stats.OutBytes)
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "archives")
	var paths []string
	sizes := [][2]int{{12, 9}, {20, 20}, {5, 31}}
	for i, wh := range sizes {
		name := []string{"a.pgm", "b.pgm", "c.pgm"}[i]
		paths = append(paths, writeImage(t, dir, name, wh[0], wh[1]))
	}

	if err := Batch(paths, outDir, 2, false); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	for i, in := range paths {
		archive := filepath.Join(outDir, filepath.Base(in)+DefaultExt)
		restored := filepath.Join(dir, "restored"+filepath.Base(in))
		if err := DecompressFile(archive, restored); err != nil {
			t.Fatalf("decompressing %s: %v", archive, err)
		}
		got, err := pgm.ReadFile(restored)
		if err != nil {
			t.Fatal(err)
		}
		if got.Width != sizes[i][0] || got.Height != sizes[i][1] {
			t.Errorf("%s restored as %dx%d, want %dx%d",
				filepath.Base(in), got.Width, got.Height, sizes[i][0], sizes[i][1])
		}
		want, err := pgm.ReadFile(in)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got.Pixels, want.Pixels) {
			t.Errorf("%s: restored pixels differ", filepath.Base(in))
		}
	}
}

func TestBatchFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	good := writeImage(t, dir, "good.pgm", 10, 10)
	bad := filepath.Join(dir, "missing.pgm")

	if err := Batch([]string{good, bad}, filepath.Join(dir, "out"), 2, false); err == nil {
		t.Fatal("expected Batch to report the missing file")
	}
}
