// Package container defines the on-disk layouts for compressed images.
// All integer fields are little-endian.
//
// The raw layout carries only the bit count, the dimensions and the
// packed payload; only the session that still holds the Huffman tree
// can decode it. The archive layout prepends a magic number, a format
// version and the symbol frequency table, which is everything a
// receiver needs to rebuild the identical tree and decode standalone.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/KitchenMishap/grayhuff/huffman"
)

var (
	ErrBadMagic      = errors.New("container: not a grayhuff archive")
	ErrVersion       = errors.New("container: unsupported archive version")
	ErrCorruptHeader = errors.New("container: corrupt header")
	ErrTruncated     = errors.New("container: truncated artifact")
	ErrTooLarge      = errors.New("container: value exceeds its 32-bit field")
)

var archiveMagic = [4]byte{'G', 'H', 'U', 'F'}

// Version is the archive layout version this package writes.
const Version = 1

func payloadLen(bitCount uint64) uint64 { return (bitCount + 7) / 8 }

// readPayload grows with the data actually read, so a lying bit count
// cannot ask for a huge allocation up front.
func readPayload(r io.Reader, n uint64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTruncated, err)
	}
	return buf.Bytes(), nil
}

// WriteRaw emits the closed-loop layout: bitCount, width and height as
// 32-bit fields, then the packed payload.
func WriteRaw(w io.Writer, bitCount uint64, width, height int, payload []byte) error {
	if bitCount > math.MaxUint32 {
		return fmt.Errorf("%w: %d bits", ErrTooLarge, bitCount)
	}
	if err := checkDims(width, height); err != nil {
		return err
	}
	if uint64(len(payload)) != payloadLen(bitCount) {
		return fmt.Errorf("container: %d payload bytes, want %d for %d bits",
			len(payload), payloadLen(bitCount), bitCount)
	}

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(bitCount))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(width))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(height))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadRaw parses the closed-loop layout.
func ReadRaw(r io.Reader) (bitCount uint64, width, height int, payload []byte, err error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	bitCount = uint64(binary.LittleEndian.Uint32(hdr[0:4]))
	width = int(binary.LittleEndian.Uint32(hdr[4:8]))
	height = int(binary.LittleEndian.Uint32(hdr[8:12]))

	payload, err = readPayload(r, payloadLen(bitCount))
	if err != nil {
		return 0, 0, 0, nil, err
	}
	return bitCount, width, height, payload, nil
}

// Archive is the standalone artifact: everything needed to rebuild the
// tree and decode without the source image.
type Archive struct {
	Width    int
	Height   int
	BitCount uint64
	Freqs    *huffman.FrequencyTable
	Payload  []byte
}

// WriteArchive emits the self-describing layout: magic, version, the
// frequency table as {symbol, count} entries ascending by symbol, the
// dimensions, the bit count and the payload.
func WriteArchive(w io.Writer, a *Archive) error {
	if a.BitCount > math.MaxUint32 {
		return fmt.Errorf("%w: %d bits", ErrTooLarge, a.BitCount)
	}
	if err := checkDims(a.Width, a.Height); err != nil {
		return err
	}
	if uint64(len(a.Payload)) != payloadLen(a.BitCount) {
		return fmt.Errorf("container: %d payload bytes, want %d for %d bits",
			len(a.Payload), payloadLen(a.BitCount), a.BitCount)
	}
	var syms []byte
	var total uint64
	if a.Freqs != nil {
		syms = a.Freqs.Symbols()
		total = a.Freqs.Total()
	}
	if total != uint64(a.Width)*uint64(a.Height) {
		return fmt.Errorf("container: counts cover %d samples, image is %dx%d",
			total, a.Width, a.Height)
	}

	buf := make([]byte, 0, 7+5*len(syms)+12+len(a.Payload))
	buf = append(buf, archiveMagic[:]...)
	buf = append(buf, Version)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(syms)))
	for _, sym := range syms {
		c := a.Freqs.Count(sym)
		if c > math.MaxUint32 {
			return fmt.Errorf("%w: count %d for symbol %d", ErrTooLarge, c, sym)
		}
		buf = append(buf, sym)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c))
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Height))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.BitCount))
	buf = append(buf, a.Payload...)

	_, err := w.Write(buf)
	return err
}

// ReadArchive parses and validates the self-describing layout.
func ReadArchive(r io.Reader) (*Archive, error) {
	var hdr [7]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if !bytes.Equal(hdr[0:4], archiveMagic[:]) {
		return nil, ErrBadMagic
	}
	if hdr[4] != Version {
		return nil, fmt.Errorf("%w (%d)", ErrVersion, hdr[4])
	}
	symbolCount := int(binary.LittleEndian.Uint16(hdr[5:7]))
	if symbolCount > 256 {
		return nil, fmt.Errorf("%w: %d symbols", ErrCorruptHeader, symbolCount)
	}

	entries := make([]byte, 5*symbolCount)
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, fmt.Errorf("%w: symbol table: %v", ErrTruncated, err)
	}
	freqs := &huffman.FrequencyTable{}
	prev := -1
	for i := 0; i < symbolCount; i++ {
		sym := entries[5*i]
		count := binary.LittleEndian.Uint32(entries[5*i+1:])
		if int(sym) <= prev {
			return nil, fmt.Errorf("%w: symbol table not ascending at entry %d", ErrCorruptHeader, i)
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: zero count for symbol %d", ErrCorruptHeader, sym)
		}
		prev = int(sym)
		freqs.AddCount(sym, uint64(count))
	}

	var tail [12]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	width := int(binary.LittleEndian.Uint32(tail[0:4]))
	height := int(binary.LittleEndian.Uint32(tail[4:8]))
	bitCount := uint64(binary.LittleEndian.Uint32(tail[8:12]))

	if freqs.Total() != uint64(width)*uint64(height) {
		return nil, fmt.Errorf("%w: counts cover %d samples, image is %dx%d",
			ErrCorruptHeader, freqs.Total(), width, height)
	}
	if symbolCount == 0 && bitCount != 0 {
		return nil, fmt.Errorf("%w: %d bits with an empty symbol table", ErrCorruptHeader, bitCount)
	}

	payload, err := readPayload(r, payloadLen(bitCount))
	if err != nil {
		return nil, err
	}
	return &Archive{
		Width:    width,
		Height:   height,
		BitCount: bitCount,
		Freqs:    freqs,
		Payload:  payload,
	}, nil
}

func checkDims(width, height int) error {
	if width < 0 || int64(width) > math.MaxUint32 || height < 0 || int64(height) > math.MaxUint32 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrTooLarge, width, height)
	}
	return nil
}
