// Package bitstream packs variable-length codes into bytes and hands
// them back one bit at a time, most significant bit first throughout.
package bitstream

import (
	"errors"
	"fmt"
)

var (
	ErrExhausted    = errors.New("bitstream: read past the advertised bit count")
	ErrSizeMismatch = errors.New("bitstream: payload length does not match bit count")
)

// Writer packs bits into bytes. The zero value is ready to use.
type Writer struct {
	buffer []byte
	accum  uint64 // Temporary storage for bits
	nbits  uint   // Number of bits currently in accum
	total  uint64 // Meaningful bits written so far
}

// WriteBits appends the low n bits of bits to the stream, most
// significant of those n first. n can be at most 57, which leaves room
// for the partial byte already in the accumulator.
func (w *Writer) WriteBits(bits uint64, n uint) {
	// Mask the input to n bits, then add them to the accumulator
	bits &= 1<<n - 1
	w.accum |= bits << (64 - n - w.nbits)
	w.nbits += n
	w.total += uint64(n)

	// If we have 8 or more bits, flush the full bytes
	for w.nbits >= 8 {
		w.buffer = append(w.buffer, byte(w.accum>>56))
		w.accum <<= 8
		w.nbits -= 8
	}
}

// Flush pads the final partial byte with zero bits and emits it.
func (w *Writer) Flush() {
	if w.nbits > 0 {
		w.buffer = append(w.buffer, byte(w.accum>>56))
		w.accum = 0
		w.nbits = 0
	}
}

// Bytes returns the packed stream, ceil(BitCount/8) bytes once flushed.
func (w *Writer) Bytes() []byte { return w.buffer }

// BitCount returns the number of meaningful bits written, excluding
// any padding added by Flush.
func (w *Writer) BitCount() uint64 { return w.total }

// Reader walks a packed stream bit by bit. It stops at the advertised
// bit count, so padding in the final byte is never seen.
type Reader struct {
	data     []byte
	pos      int
	cur      byte
	consumed uint64
	total    uint64
}

// NewReader wraps data holding exactly bitCount meaningful bits. The
// byte length has to be ceil(bitCount/8); anything else means the
// payload and the count disagree about each other.
func NewReader(data []byte, bitCount uint64) (*Reader, error) {
	if uint64(len(data)) != (bitCount+7)/8 {
		return nil, fmt.Errorf("%w: %d bytes for %d bits", ErrSizeMismatch, len(data), bitCount)
	}
	r := &Reader{data: data, total: bitCount}
	if len(data) > 0 {
		r.cur = data[0]
	}
	return r, nil
}

// ReadBit returns the next bit, 0 or 1.
func (r *Reader) ReadBit() (byte, error) {
	if r.consumed >= r.total {
		return 0, ErrExhausted
	}

	// Extract MSB
	bit := (r.cur >> 7) & 1
	r.cur <<= 1
	r.consumed++

	if r.consumed%8 == 0 {
		r.pos++
		if r.pos < len(r.data) {
			r.cur = r.data[r.pos]
		}
	}
	return bit, nil
}

// Remaining returns how many meaningful bits are left to read.
func (r *Reader) Remaining() uint64 { return r.total - r.consumed }

// Consumed returns how many bits have been read so far.
func (r *Reader) Consumed() uint64 { return r.consumed }
