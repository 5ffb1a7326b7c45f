package pgm

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := &Image{
		Width:  3,
		Height: 2,
		Pixels: []byte{0, 128, 255, 7, 7, 13},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Width != img.Width || got.Height != img.Height {
		t.Errorf("dimensions: got %dx%d, want %dx%d", got.Width, got.Height, img.Width, img.Height)
	}
	if !bytes.Equal(got.Pixels, img.Pixels) {
		t.Errorf("pixels: got %v, want %v", got.Pixels, img.Pixels)
	}
}

func TestEncodeGoldenHeader(t *testing.T) {
	img := &Image{Width: 3, Height: 2, Pixels: []byte{1, 2, 3, 4, 5, 6}}
	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := append([]byte("P5\n3 2\n255\n"), 1, 2, 3, 4, 5, 6)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded bytes: got %q, want %q", buf.Bytes(), want)
	}
}

func TestDecodeSingleSpaceHeader(t *testing.T) {
	// The header fields may be separated by any run of whitespace,
	// with exactly one separator byte before the raster.
	data := append([]byte("P5 2 2 255\n"), 9, 8, 7, 6)
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Fatalf("dimensions: got %dx%d, want 2x2", img.Width, img.Height)
	}
	if !bytes.Equal(img.Pixels, []byte{9, 8, 7, 6}) {
		t.Errorf("pixels: got %v", img.Pixels)
	}
}

func TestDecodeKeepsWhitespaceValuedSamples(t *testing.T) {
	// Only one separator byte follows the max value; a raster that
	// starts with 0x20 or 0x0A keeps those bytes as samples.
	data := append([]byte("P5\n2 1\n255\n"), ' ', '\n')
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(img.Pixels, []byte{' ', '\n'}) {
		t.Errorf("pixels: got %v, want [32 10]", img.Pixels)
	}
}

func TestDecodeRejectsOtherFormats(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("P2\n1 1\n255\n0"))); !errors.Is(err, ErrBadMagic) {
		t.Errorf("P2: got %v, want ErrBadMagic", err)
	}
	if _, err := Decode(bytes.NewReader([]byte("BM"))); !errors.Is(err, ErrBadMagic) && !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("BM: got %v", err)
	}
}

func TestDecodeRejectsWideSamples(t *testing.T) {
	data := append([]byte("P5\n1 1\n65535\n"), 0, 0)
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrMaxValRange) {
		t.Errorf("maxval 65535: got %v, want ErrMaxValRange", err)
	}
	data = append([]byte("P5\n1 1\n0\n"), 0)
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrMaxValRange) {
		t.Errorf("maxval 0: got %v, want ErrMaxValRange", err)
	}
}

func TestDecodeRejectsJunkHeader(t *testing.T) {
	data := []byte("P5\nthree 2\n255\n")
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("text width: got %v, want ErrMalformedHeader", err)
	}
	data = []byte("P5\n-3 2\n255\n")
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("negative width: got %v, want ErrMalformedHeader", err)
	}
}

func TestDecodeTruncatedRaster(t *testing.T) {
	data := append([]byte("P5\n2 2\n255\n"), 1, 2)
	_, err := Decode(bytes.NewReader(data))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated raster: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestZeroAreaImages(t *testing.T) {
	for _, dims := range [][2]int{{0, 5}, {5, 0}, {0, 0}} {
		img := &Image{Width: dims[0], Height: dims[1], Pixels: []byte{}}
		var buf bytes.Buffer
		if err := Encode(&buf, img); err != nil {
			t.Fatalf("Encode %dx%d: %v", dims[0], dims[1], err)
		}
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode %dx%d: %v", dims[0], dims[1], err)
		}
		if got.Width != dims[0] || got.Height != dims[1] || len(got.Pixels) != 0 {
			t.Errorf("round trip %dx%d: got %dx%d with %d pixels",
				dims[0], dims[1], got.Width, got.Height, len(got.Pixels))
		}
	}
}

func TestEncodeRejectsDimensionLies(t *testing.T) {
	img := &Image{Width: 2, Height: 2, Pixels: []byte{1, 2, 3}}
	var buf bytes.Buffer
	if err := Encode(&buf, img); !errors.Is(err, ErrDimensions) {
		t.Errorf("Encode: got %v, want ErrDimensions", err)
	}
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.pgm")
	img := &Image{Width: 4, Height: 1, Pixels: []byte{10, 20, 30, 40}}
	if err := WriteFile(path, img); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got.Pixels, img.Pixels) {
		t.Errorf("pixels: got %v, want %v", got.Pixels, img.Pixels)
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.pgm")); err == nil {
		t.Error("ReadFile(missing) did not fail")
	}
}
