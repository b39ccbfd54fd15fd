package codec

import (
	"container/heap"
	"encoding/binary"
	"sort"
)

// huffmanEncode/huffmanDecode implement the HUFFMAN primitive as a
// two-pass canonical Huffman coder: a frequency table is built over the
// input, code lengths are derived from the resulting tree, canonicalized,
// and written as a 256-byte length table ahead of the bitstream. This is
// self-contained (not bit-compatible with any specific legacy encoder
// table) but satisfies the codec contract of §4.2: decode(encode(x)) == x.

type huffNode struct {
	freq        int
	sym         int // -1 for internal nodes
	left, right *huffNode
}

type huffHeap []*huffNode

func (h huffHeap) Len() int            { return len(h) }
func (h huffHeap) Less(i, j int) bool  { return h[i].freq < h[j].freq }
func (h huffHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *huffHeap) Push(x interface{}) { *h = append(*h, x.(*huffNode)) }
func (h *huffHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type huffCode struct {
	code   uint32
	length int
}

// canonicalCodes assigns canonical Huffman codes given per-symbol bit
// lengths (0 = symbol unused).
func canonicalCodes(lengths []int) []huffCode {
	type entry struct {
		sym, length int
	}
	var entries []entry
	for sym, l := range lengths {
		if l > 0 {
			entries = append(entries, entry{sym, l})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].length != entries[j].length {
			return entries[i].length < entries[j].length
		}
		return entries[i].sym < entries[j].sym
	})

	codes := make([]huffCode, len(lengths))
	code := uint32(0)
	prevLen := 0
	for _, e := range entries {
		code <<= uint(e.length - prevLen)
		codes[e.sym] = huffCode{code: code, length: e.length}
		code++
		prevLen = e.length
	}
	return codes
}

func huffmanEncode(data []byte) ([]byte, error) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(data)))
	if len(data) == 0 {
		return append(header, make([]byte, 256)...), nil
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	h := &huffHeap{}
	heap.Init(h)
	for sym, f := range freq {
		if f > 0 {
			heap.Push(h, &huffNode{freq: f, sym: sym})
		}
	}
	if h.Len() == 1 {
		only := (*h)[0]
		dummy := (only.sym + 1) % 256
		for s := range freq {
			if freq[s] == 0 {
				dummy = s
				break
			}
		}
		heap.Push(h, &huffNode{freq: 0, sym: dummy})
	}
	for h.Len() > 1 {
		a := heap.Pop(h).(*huffNode)
		b := heap.Pop(h).(*huffNode)
		heap.Push(h, &huffNode{freq: a.freq + b.freq, sym: -1, left: a, right: b})
	}
	root := heap.Pop(h).(*huffNode)

	var lengths [256]int
	var walk func(n *huffNode, depth int)
	walk = func(n *huffNode, depth int) {
		if n.left == nil && n.right == nil {
			if depth == 0 {
				depth = 1
			}
			lengths[n.sym] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)

	codes := canonicalCodes(lengths[:])

	out := make([]byte, 0, 4+256+len(data))
	out = append(out, header...)
	for i := 0; i < 256; i++ {
		out = append(out, byte(lengths[i]))
	}

	bw := newBitWriter()
	for _, b := range data {
		c := codes[b]
		bw.writeBits(c.code, c.length)
	}
	out = append(out, bw.bytes()...)
	return out, nil
}

func huffmanDecode(in []byte) ([]byte, error) {
	if len(in) < 4+256 {
		return nil, errf("huffman-decode", "truncated header")
	}
	n := int(binary.LittleEndian.Uint32(in[:4]))
	lengths := in[4 : 4+256]
	bits := in[4+256:]

	if n == 0 {
		return []byte{}, nil
	}

	intLengths := make([]int, 256)
	for i, l := range lengths {
		intLengths[i] = int(l)
	}
	codes := canonicalCodes(intLengths)

	// Build a decode lookup keyed by (length, code).
	type key struct {
		length int
		code   uint32
	}
	lut := make(map[key]byte, 256)
	for sym, c := range codes {
		if c.length > 0 {
			lut[key{c.length, c.code}] = byte(sym)
		}
	}

	out := make([]byte, 0, n)
	r := newBitReader(bits)
	var code uint32
	length := 0
	for len(out) < n {
		bit, err := r.readBit()
		if err != nil {
			return nil, errf("huffman-decode", "ran out of bits before %d symbols decoded", n)
		}
		code = code<<1 | uint32(bit)
		length++
		if sym, ok := lut[key{length, code}]; ok {
			out = append(out, sym)
			code = 0
			length = 0
		}
		if length > 32 {
			return nil, errf("huffman-decode", "no matching code after 32 bits")
		}
	}
	return out, nil
}
