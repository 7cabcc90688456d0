// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

// bitWriter is the counterpart of bitReader.
type bitWriter struct {
	out []byte
	acc uint32
	n   uint
}

func (w *bitWriter) write(v uint32, count uint) {
	for i := uint(0); i < count; i++ {
		w.acc |= (v >> i & 1) << w.n
		w.n++
		if w.n == 8 {
			w.out = append(w.out, byte(w.acc))
			w.acc, w.n = 0, 0
		}
	}
}

func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		return append(w.out, byte(w.acc))
	}
	return w.out
}

// huffmanCompress encodes data with weight table 0, driving the same
// adaptive tree the decoder uses.
func huffmanCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	tree, err := newHuffTree(0)
	if err != nil {
		t.Fatal(err)
	}

	w := &bitWriter{}
	w.write(0, 8)
	emit := func(v uint32) {
		for _, bit := range huffPath(t, tree, tree.byValue[v]) {
			w.write(bit, 1)
		}
	}
	for _, b := range data {
		emit(uint32(b))
		tree.incWeights(tree.byValue[b])
	}
	emit(huffEndOfStream)
	return w.bytes()
}

// huffPath returns the bits that lead from the root to leaf.
func huffPath(t *testing.T, tree *huffTree, leaf *huffItem) []uint32 {
	t.Helper()
	var bits []uint32
	item := leaf
	for ; item.parent != nil; item = item.parent {
		switch item {
		case item.parent.childLo:
			bits = append(bits, 0)
		case item.parent.childLo.prev:
			bits = append(bits, 1)
		default:
			t.Fatalf("item 0x%X is not next to its sibling", item.value)
		}
	}
	if item != tree.head.next {
		t.Fatalf("path of 0x%X does not end at the root", leaf.value)
	}
	slices.Reverse(bits)
	return bits
}

// Streams produced by the reference Huffman coder with table 0.
var huffmanStreams = []struct {
	name   string
	stream []byte
	want   []byte
}{
	{"repeated byte", []byte{0x00, 0x51, 0xFB, 0xBB, 0xFB, 0x75, 0x3D, 0x04}, []byte("AAAAAA")},
	{"heavy bytes", []byte{0x00, 0xF7, 0xDE, 0x73, 0x26, 0x1E, 0x02}, []byte{0x00, 0x00, 0x00, 0x01, 0x01, 0xFF}},
	{"text", []byte{
		0x00, 0xCA, 0x6A, 0xFA, 0xB7, 0x1A, 0xD3, 0xF7,
		0x62, 0x8A, 0xAB, 0x7A, 0x55, 0x9A, 0x0F, 0x01,
	}, []byte("hello huffman")},
}

func TestHuffmanReferenceStreams(t *testing.T) {
	for _, test := range huffmanStreams {
		t.Run(test.name, func(t *testing.T) {
			got, err := decompressHuffman(test.stream, len(test.want))
			if err != nil {
				t.Fatalf("decompressHuffman: %v", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("decompressHuffman = % X, want % X", got, test.want)
			}

			if enc := huffmanCompress(t, test.want); !bytes.Equal(enc, test.stream) {
				t.Errorf("huffmanCompress = % X, want % X", enc, test.stream)
			}
		})
	}
}

func TestHuffmanInitialTree(t *testing.T) {
	tree, err := newHuffTree(0)
	if err != nil {
		t.Fatal(err)
	}
	// 0x00 and 0x01 weigh 10, the other 254 bytes and the two control
	// symbols weigh 1.
	if root := tree.head.next; root.weight != 276 {
		t.Errorf("root weight = %d, want 276", root.weight)
	}

	tests := []struct {
		value uint32
		want  []uint32
	}{
		{0x00, []uint32{1, 1, 1, 0, 1}},
		{0x41, []uint32{1, 0, 0, 0, 1, 0, 1, 0}},
		{huffEndOfStream, []uint32{1, 1, 0, 0, 1, 0, 1, 1}},
	}
	for _, test := range tests {
		if got := huffPath(t, tree, tree.byValue[test.value]); !slices.Equal(got, test.want) {
			t.Errorf("code of 0x%X = %v, want %v", test.value, got, test.want)
		}
	}
}

func TestHuffmanRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte("a"),
		[]byte("hello huffman hello huffman hello"),
		bytes.Repeat([]byte{0, 0, 0, 1, 255}, 200),
	}
	for _, in := range inputs {
		got, err := decompressHuffman(huffmanCompress(t, in), len(in))
		if err != nil {
			t.Fatalf("decompressHuffman: %v", err)
		}
		if !bytes.Equal(got, in) {
			t.Errorf("decompressHuffman = %q, want %q", got, in)
		}
	}
}

func TestHuffmanStopsAtEndOfStream(t *testing.T) {
	in := []byte("short")
	got, err := decompressHuffman(huffmanCompress(t, in), 100)
	if err != nil {
		t.Fatalf("decompressHuffman: %v", err)
	}
	if !bytes.Equal(got, in) {
		t.Errorf("decompressHuffman = %q, want %q", got, in)
	}
}

func TestHuffmanErrors(t *testing.T) {
	if _, err := decompressHuffman([]byte{7, 0, 0}, 4); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("unknown table error = %v, want ErrUnsupportedCompression", err)
	}
	if _, err := decompressHuffman(nil, 4); !errors.Is(err, ErrCorruptData) {
		t.Errorf("empty stream error = %v, want ErrCorruptData", err)
	}

	stream := huffmanCompress(t, []byte("truncated stream"))
	if _, err := decompressHuffman(stream[:3], 16); !errors.Is(err, ErrCorruptData) {
		t.Errorf("truncated stream error = %v, want ErrCorruptData", err)
	}
}
