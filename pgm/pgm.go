// Package pgm reads and writes binary PGM (P5) images with one byte
// per sample.
package pgm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

var (
	ErrBadMagic        = errors.New("pgm: not a P5 file")
	ErrMalformedHeader = errors.New("pgm: malformed header")
	ErrMaxValRange     = errors.New("pgm: max sample value outside 1..255")
	ErrDimensions      = errors.New("pgm: sample count does not match dimensions")
)

// Keeps a lying header from asking for silly allocations.
const maxPixels = 1 << 30

// Image is a single-channel raster, one byte per sample, rows top to
// bottom. Zero-area images are legal.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

// Decode parses a P5 stream: the tag, ASCII width, height and max
// value separated by whitespace, one separator byte, then the raw
// samples. Comment lines are not part of this dialect.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	magic, err := readToken(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if magic != "P5" {
		return nil, fmt.Errorf("%w (tag %q)", ErrBadMagic, magic)
	}
	width, err := readHeaderInt(br, "width")
	if err != nil {
		return nil, err
	}
	height, err := readHeaderInt(br, "height")
	if err != nil {
		return nil, err
	}
	maxVal, err := readHeaderInt(br, "max value")
	if err != nil {
		return nil, err
	}
	if maxVal < 1 || maxVal > 255 {
		return nil, fmt.Errorf("%w (%d)", ErrMaxValRange, maxVal)
	}
	if width > maxPixels || height > maxPixels || int64(width)*int64(height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d is too large", ErrMalformedHeader, width, height)
	}

	img := &Image{
		Width:  width,
		Height: height,
		Pixels: make([]byte, width*height),
	}
	if _, err := io.ReadFull(br, img.Pixels); err != nil {
		return nil, fmt.Errorf("pgm: raster truncated: %w", err)
	}
	return img, nil
}

// Encode writes img in the shape Decode accepts. The max value is
// always written as 255.
func Encode(w io.Writer, img *Image) error {
	if img.Width < 0 || img.Height < 0 || len(img.Pixels) != img.Width*img.Height {
		return fmt.Errorf("%w: %dx%d with %d samples", ErrDimensions, img.Width, img.Height, len(img.Pixels))
	}
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	_, err := w.Write(img.Pixels)
	return err
}

// ReadFile opens and decodes path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// WriteFile encodes img to path.
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// readToken skips leading whitespace, reads until the next whitespace
// byte and consumes it. Consuming the terminator is what leaves the
// reader positioned on the first raster byte after the final header
// field.
func readToken(br *bufio.Reader) (string, error) {
	c, err := br.ReadByte()
	for err == nil && isSpace(c) {
		c, err = br.ReadByte()
	}
	if err != nil {
		return "", err
	}
	tok := []byte{c}
	for {
		c, err = br.ReadByte()
		if err == io.EOF {
			return string(tok), nil
		}
		if err != nil {
			return "", err
		}
		if isSpace(c) {
			return string(tok), nil
		}
		tok = append(tok, c)
	}
}

func readHeaderInt(br *bufio.Reader, field string) (int, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %v", ErrMalformedHeader, field, err)
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedHeader, field, tok)
	}
	return n, nil
}
