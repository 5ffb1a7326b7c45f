// Package compress wires the codec stages together: count, build tree,
// assign codes, pack bits. File handling stays with the callers.
package compress

import (
	"fmt"

	"github.com/KitchenMishap/grayhuff/bitstream"
	"github.com/KitchenMishap/grayhuff/huffman"
)

// Result carries everything the container and driver layers need: the
// frequency table for embedding, the tree for closed-loop decoding,
// the code table for inspection, and the packed payload.
type Result struct {
	Freqs    *huffman.FrequencyTable
	Tree     *huffman.Tree
	Codes    huffman.CodeTable
	BitCount uint64
	Payload  []byte
}

// Compress runs the encoding pipeline over the samples. An empty input
// is a valid empty artifact: no tree is built, the payload is empty.
// Only an actual attempt to build a tree over nothing fails.
func Compress(samples []byte) (*Result, error) {
	ft := huffman.CountSamples(samples)
	if ft.Total() == 0 {
		return &Result{Freqs: ft}, nil
	}

	tree, err := huffman.Build(ft)
	if err != nil {
		return nil, err
	}
	codes, err := tree.Codes()
	if err != nil {
		return nil, err
	}

	var w bitstream.Writer
	for _, s := range samples {
		bc := codes[s]
		w.WriteBits(bc.Bits, uint(bc.Length))
	}
	w.Flush()

	return &Result{
		Freqs:    ft,
		Tree:     tree,
		Codes:    codes,
		BitCount: w.BitCount(),
		Payload:  w.Bytes(),
	}, nil
}

// Decompress unpacks payload back into samples using a tree built from
// the same frequencies the encoder used.
func Decompress(tree *huffman.Tree, bitCount uint64, payload []byte) ([]byte, error) {
	r, err := bitstream.NewReader(payload, bitCount)
	if err != nil {
		return nil, err
	}
	if bitCount == 0 {
		return []byte{}, nil
	}
	if tree == nil {
		return nil, fmt.Errorf("%d bits with no tree to walk: %w", bitCount, huffman.ErrEmptyAlphabet)
	}
	return tree.Decode(r)
}

// Stats summarizes one compression for reporting.
type Stats struct {
	Samples   int
	Distinct  int
	TotalBits uint64
	InBytes   int64 // source file size
	OutBytes  int64 // artifact file size
	ZstdBytes int64 // baseline, -1 when not measured
}

// Ratio is artifact size over source size; lower is better.
func (s *Stats) Ratio() float64 {
	if s.InBytes == 0 {
		return 0
	}
	return float64(s.OutBytes) / float64(s.InBytes)
}

// Saving is the percentage of the source size shaved off.
func (s *Stats) Saving() float64 { return 100 * (1 - s.Ratio()) }
