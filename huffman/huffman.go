// Package huffman builds frequency-weighted prefix codes over a byte
// alphabet and decodes the bitstreams they produce. Construction is
// deterministic: the same frequencies always give the same codes.
package huffman

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/KitchenMishap/grayhuff/bitstream"
)

var (
	ErrEmptyAlphabet    = errors.New("huffman: no symbols to build a tree from")
	ErrCorruptBitstream = errors.New("huffman: bitstream does not resolve to whole symbols")
	ErrCodeTooLong      = errors.New("huffman: code length over the packing limit")
)

// MaxCodeLength is the longest code the packer accepts. Any frequency
// table whose total fits in 32 bits stays far below it.
const MaxCodeLength = 56

// FrequencyTable counts how often each byte value appears. The zero
// value is an empty table.
type FrequencyTable struct {
	counts   [256]uint64
	distinct int
	total    uint64
}

// CountSamples tallies every sample in one pass.
func CountSamples(samples []byte) *FrequencyTable {
	var ft FrequencyTable
	for _, s := range samples {
		if ft.counts[s] == 0 {
			ft.distinct++
		}
		ft.counts[s]++
	}
	ft.total = uint64(len(samples))
	return &ft
}

// AddCount registers n more occurrences of sym. Used to rebuild a
// table from serialized entries.
func (ft *FrequencyTable) AddCount(sym byte, n uint64) {
	if n == 0 {
		return
	}
	if ft.counts[sym] == 0 {
		ft.distinct++
	}
	ft.counts[sym] += n
	ft.total += n
}

// Count returns how often sym was seen.
func (ft *FrequencyTable) Count(sym byte) uint64 { return ft.counts[sym] }

// Total returns the number of samples counted.
func (ft *FrequencyTable) Total() uint64 { return ft.total }

// Distinct returns the alphabet size.
func (ft *FrequencyTable) Distinct() int { return ft.distinct }

// Symbols returns the observed values in ascending order.
func (ft *FrequencyTable) Symbols() []byte {
	syms := make([]byte, 0, ft.distinct)
	for v := 0; v < 256; v++ {
		if ft.counts[v] > 0 {
			syms = append(syms, byte(v))
		}
	}
	return syms
}

// BitCode is the compressed representation of one symbol.
type BitCode struct {
	Bits   uint64 // The actual bit pattern, right-aligned
	Length int    // How many bits used
}

// CodeTable maps each symbol to its code, indexed by symbol value.
// A Length of zero means the symbol is not in the alphabet.
type CodeTable [256]BitCode

// Code looks up the code for sym.
func (ct *CodeTable) Code(sym byte) (BitCode, bool) {
	bc := ct[sym]
	return bc, bc.Length > 0
}

const noChild = int32(-1)

// A node is a leaf when it has no children; the symbol field only
// means something on leaves. No symbol value is reserved as a marker.
type node struct {
	freq   uint64
	left   int32
	right  int32
	symbol byte
}

// Tree is a Huffman tree kept in an arena of nodes addressed by index.
// Children always sit at lower indices than their parent.
type Tree struct {
	nodes []node
	root  int32
}

// buildQueue is a min-heap of arena indices ordered by frequency, with
// the arena index itself as the tie-break. Leaves enter the arena in
// ascending symbol order and internal nodes in creation order, so the
// ordering is a strict total order and every build of the same table
// pops in the same sequence.
type buildQueue struct {
	t     *Tree
	order []int32
}

func (q *buildQueue) Len() int { return len(q.order) }
func (q *buildQueue) Less(i, j int) bool {
	a, b := q.order[i], q.order[j]
	if q.t.nodes[a].freq != q.t.nodes[b].freq {
		return q.t.nodes[a].freq < q.t.nodes[b].freq
	}
	return a < b
}
func (q *buildQueue) Swap(i, j int)      { q.order[i], q.order[j] = q.order[j], q.order[i] }
func (q *buildQueue) Push(x interface{}) { q.order = append(q.order, x.(int32)) }
func (q *buildQueue) Pop() interface{} {
	old := q.order
	n := len(old)
	item := old[n-1]
	q.order = old[0 : n-1]
	return item
}

// Build constructs the tree for a frequency table: pop the two lowest
// nodes, combine them under a fresh parent, push the parent back, until
// one node remains. The node popped first becomes the left child.
func Build(ft *FrequencyTable) (*Tree, error) {
	if ft == nil || ft.distinct == 0 {
		return nil, ErrEmptyAlphabet
	}

	t := &Tree{nodes: make([]node, 0, 2*ft.distinct-1)}
	q := &buildQueue{t: t, order: make([]int32, 0, ft.distinct)}
	for v := 0; v < 256; v++ {
		if ft.counts[v] == 0 {
			continue
		}
		t.nodes = append(t.nodes, node{
			freq:   ft.counts[v],
			left:   noChild,
			right:  noChild,
			symbol: byte(v),
		})
		q.order = append(q.order, int32(len(t.nodes)-1))
	}
	heap.Init(q)

	for q.Len() > 1 {
		left := heap.Pop(q).(int32)
		right := heap.Pop(q).(int32)

		// Parent takes the sum of the children's frequencies
		t.nodes = append(t.nodes, node{
			freq:  t.nodes[left].freq + t.nodes[right].freq,
			left:  left,
			right: right,
		})
		heap.Push(q, int32(len(t.nodes)-1))
	}
	t.root = heap.Pop(q).(int32)
	return t, nil
}

// LeafCount returns the number of symbols the tree codes for.
func (t *Tree) LeafCount() int { return (len(t.nodes) + 1) / 2 }

// Codes assigns every leaf its code by a depth-first walk over an
// explicit stack: 0 descending left, 1 descending right, recorded on
// reaching the leaf. A lone-leaf tree (one-symbol alphabet) has no
// path to walk, so its symbol gets the explicit one-bit code 0.
func (t *Tree) Codes() (CodeTable, error) {
	var table CodeTable

	type frame struct {
		at    int32
		bits  uint64
		depth int
	}
	stack := make([]frame, 0, 64)
	stack = append(stack, frame{at: t.root})
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &t.nodes[f.at]
		if nd.left == noChild {
			if f.depth == 0 {
				table[nd.symbol] = BitCode{Bits: 0, Length: 1}
			} else {
				table[nd.symbol] = BitCode{Bits: f.bits, Length: f.depth}
			}
			continue
		}
		if f.depth >= MaxCodeLength {
			return CodeTable{}, fmt.Errorf("%w: depth %d", ErrCodeTooLong, f.depth+1)
		}
		// Left = 0, Right = 1
		stack = append(stack, frame{at: nd.right, bits: f.bits<<1 | 1, depth: f.depth + 1})
		stack = append(stack, frame{at: nd.left, bits: f.bits << 1, depth: f.depth + 1})
	}
	return table, nil
}

// Decode walks the tree over every remaining bit of r: left on 0,
// right on 1, emit and return to the root at each leaf. The cursor has
// to be back at the root when the bits run out; anything else means
// the stream was corrupted or truncated.
func (t *Tree) Decode(r *bitstream.Reader) ([]byte, error) {
	capHint := r.Remaining()/2 + 1
	if capHint > 1<<20 {
		capHint = 1 << 20
	}
	out := make([]byte, 0, capHint)

	if len(t.nodes) == 1 {
		// Lone-leaf tree: every sample is a single 0 bit.
		sym := t.nodes[t.root].symbol
		for r.Remaining() > 0 {
			bit, err := r.ReadBit()
			if err != nil {
				return nil, err
			}
			if bit != 0 {
				return nil, fmt.Errorf("%w: 1 bit at offset %d in a one-symbol stream",
					ErrCorruptBitstream, r.Consumed()-1)
			}
			out = append(out, sym)
		}
		return out, nil
	}

	cur := t.root
	for r.Remaining() > 0 {
		bit, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if bit == 0 {
			cur = t.nodes[cur].left
		} else {
			cur = t.nodes[cur].right
		}
		if t.nodes[cur].left == noChild {
			out = append(out, t.nodes[cur].symbol)
			cur = t.root
		}
	}
	if cur != t.root {
		return nil, fmt.Errorf("%w: %d bits consumed, %d symbols out, cursor mid-path",
			ErrCorruptBitstream, r.Consumed(), len(out))
	}
	return out, nil
}
