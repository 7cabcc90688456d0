// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import "fmt"

// Adaptive Huffman coding used by Blizzard for wave data.
//
// Tree items live in a doubly linked list ordered by descending weight; the
// root is the first item. The two children of an internal item are adjacent
// in the list, the lighter one (childLo) directly after the heavier one.

const (
	huffEndOfStream = 0x100
	huffNewByte     = 0x101
	huffItemCount   = 0x203
)

// huffWeights maps a compression table id to its initial byte weights.
// Table 0 starts every byte at 1 except 0x00 and 0x01, which start at 10,
// and adapts after each decoded byte.
var huffWeights = map[uint32]*[256]byte{
	0: func() *[256]byte {
		var w [256]byte
		for i := range w {
			w[i] = 1
		}
		w[0], w[1] = 0x0A, 0x0A
		return &w
	}(),
}

type huffItem struct {
	prev, next *huffItem
	parent     *huffItem
	childLo    *huffItem
	value      uint32
	weight     uint32
}

type huffTree struct {
	head     huffItem // list sentinel
	pool     [huffItemCount]huffItem
	used     int
	byValue  [0x102]*huffItem
	adaptive bool
}

func newHuffTree(table uint32) (*huffTree, error) {
	weights, ok := huffWeights[table]
	if !ok {
		return nil, fmt.Errorf("%w: huffman weight table %d", ErrUnsupportedCompression, table)
	}

	t := &huffTree{adaptive: table == 0}
	t.head.prev = &t.head
	t.head.next = &t.head

	for i, w := range weights {
		if w == 0 {
			continue
		}
		item := t.newItem(uint32(i), uint32(w))
		t.insertAfter(item, t.findHigherOrEqual(t.head.prev, item.weight))
		t.byValue[i] = item
	}

	for _, v := range []uint32{huffEndOfStream, huffNewByte} {
		item := t.newItem(v, 1)
		t.insertBefore(item, &t.head)
		t.byValue[v] = item
	}

	// Pair the two lightest items under a new parent until one root is left.
	for lo := t.head.prev; lo != &t.head; {
		hi := lo.prev
		if hi == &t.head {
			break
		}
		parent := t.newItem(0, hi.weight+lo.weight)
		t.insertAfter(parent, t.findHigherOrEqual(hi.prev, parent.weight))
		lo.parent = parent
		hi.parent = parent
		parent.childLo = lo
		lo = hi.prev
	}

	return t, nil
}

func (t *huffTree) newItem(value, weight uint32) *huffItem {
	if t.used >= len(t.pool) {
		return nil
	}
	item := &t.pool[t.used]
	t.used++
	item.value = value
	item.weight = weight
	return item
}

func (t *huffTree) unlink(item *huffItem) {
	if item.prev != nil {
		item.prev.next = item.next
		item.next.prev = item.prev
	}
	item.prev, item.next = nil, nil
}

func (t *huffTree) insertAfter(item, at *huffItem) {
	t.unlink(item)
	item.next = at.next
	item.prev = at
	at.next.prev = item
	at.next = item
}

func (t *huffTree) insertBefore(item, at *huffItem) {
	t.unlink(item)
	item.next = at
	item.prev = at.prev
	at.prev.next = item
	at.prev = item
}

// findHigherOrEqual walks towards the head from item and returns the first
// item whose weight is at least weight, or the head.
func (t *huffTree) findHigherOrEqual(item *huffItem, weight uint32) *huffItem {
	for ; item != nil && item != &t.head; item = item.prev {
		if item.weight >= weight {
			return item
		}
	}
	return &t.head
}

// incWeights increments weights from item up to the root, swapping items
// to keep the list ordered.
func (t *huffTree) incWeights(item *huffItem) {
	for ; item != nil; item = item.parent {
		item.weight++

		higher := t.findHigherOrEqual(item.prev, item.weight)
		swap := higher.next
		if swap == item || swap.parent == nil || item.parent == nil {
			continue
		}

		t.insertAfter(swap, item)
		t.insertAfter(item, higher)

		swapParent := swap.parent
		swapParentLo := swapParent.childLo
		if item.parent.childLo == item {
			item.parent.childLo = swap
		}
		if swapParentLo == swap {
			swapParent.childLo = item
		}
		item.parent, swap.parent = swap.parent, item.parent
	}
}

// addByte splits the lightest leaf into a copy of itself and a new leaf
// for value.
func (t *huffTree) addByte(value uint32) error {
	last := t.head.prev
	c1 := t.newItem(last.value, last.weight)
	c2 := t.newItem(value, 0)
	if c1 == nil || c2 == nil {
		return fmt.Errorf("huffman tree overflow")
	}

	t.insertBefore(c1, &t.head)
	c1.parent = last
	t.byValue[c1.value] = c1

	t.insertBefore(c2, &t.head)
	c2.parent = last
	t.byValue[value] = c2
	last.childLo = c2

	t.incWeights(c2)
	return nil
}

func (t *huffTree) decodeOne(br *bitReader) (uint32, error) {
	item := t.head.next
	for item.childLo != nil {
		bit, err := br.bits(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			item = item.childLo.prev
		} else {
			item = item.childLo
		}
	}
	return item.value, nil
}

// decompressHuffman decodes a stream whose first byte selects the weight table.
func decompressHuffman(data []byte, size int) ([]byte, error) {
	br := newBitReader(data)
	table, err := br.bits(8)
	if err != nil {
		return nil, fmt.Errorf("%w: huffman: %v", ErrCorruptData, err)
	}
	t, err := newHuffTree(table)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, size)
	for len(out) < size {
		v, err := t.decodeOne(br)
		if err != nil {
			return nil, fmt.Errorf("%w: huffman: %v", ErrCorruptData, err)
		}
		if v == huffEndOfStream {
			break
		}
		if v == huffNewByte {
			b, err := br.bits(8)
			if err != nil {
				return nil, fmt.Errorf("%w: huffman: %v", ErrCorruptData, err)
			}
			if err := t.addByte(b); err != nil {
				return nil, fmt.Errorf("%w: huffman: %v", ErrCorruptData, err)
			}
			if !t.adaptive {
				t.incWeights(t.byValue[b])
			}
			v = b
		}

		out = append(out, byte(v))
		if t.adaptive {
			t.incWeights(t.byValue[v])
		}
	}

	return out, nil
}
