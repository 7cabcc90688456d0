// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import "fmt"

// PKWare Data Compression Library "implode" streams, decoded the way
// zlib's contrib/blast does it.

const explodeMaxBits = 13

// Code lengths in compact form: low nibble is the bit length,
// high nibble plus one is the repeat count.
var (
	explodeLitLen = []byte{
		11, 124, 8, 7, 28, 7, 188, 13, 76, 4, 10, 8, 12, 10, 12, 10, 8, 23, 8,
		9, 7, 6, 7, 8, 7, 6, 55, 8, 23, 24, 12, 11, 7, 9, 11, 12, 6, 7, 22, 5,
		7, 24, 6, 11, 9, 6, 7, 22, 7, 11, 38, 7, 9, 8, 25, 11, 8, 11, 9, 12,
		8, 12, 5, 38, 5, 38, 5, 11, 7, 5, 6, 21, 6, 10, 53, 8, 7, 24, 10, 27,
		44, 253, 253, 253, 252, 252, 252, 13, 12, 45, 12, 45, 12, 61, 12, 45,
		44, 173,
	}
	explodeLenLen  = []byte{2, 35, 36, 53, 38, 23}
	explodeDistLen = []byte{2, 20, 53, 230, 247, 151, 248}

	explodeLenBase  = [16]int{3, 2, 4, 5, 6, 7, 8, 9, 10, 12, 16, 24, 40, 72, 136, 264}
	explodeLenExtra = [16]uint{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
)

// canonicalCode is a canonical Huffman code stored as counts per length
// and symbols ordered by code.
type canonicalCode struct {
	count  [explodeMaxBits + 1]int
	symbol []int
}

var (
	explodeLitCode  = newCanonicalCode(explodeLitLen)
	explodeLenCode  = newCanonicalCode(explodeLenLen)
	explodeDistCode = newCanonicalCode(explodeDistLen)
)

func newCanonicalCode(rep []byte) *canonicalCode {
	var lengths []int
	for _, r := range rep {
		for left := int(r>>4) + 1; left > 0; left-- {
			lengths = append(lengths, int(r&15))
		}
	}

	h := &canonicalCode{symbol: make([]int, len(lengths))}
	for _, l := range lengths {
		h.count[l]++
	}

	var offs [explodeMaxBits + 1]int
	for l := 1; l < explodeMaxBits; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}
	for sym, l := range lengths {
		if l != 0 {
			h.symbol[offs[l]] = sym
			offs[l]++
		}
	}
	return h
}

// decode reads one symbol. Codes are stored bit-inverted.
func (h *canonicalCode) decode(br *bitReader) (int, error) {
	code, first, index := 0, 0, 0
	for l := 1; l <= explodeMaxBits; l++ {
		bit, err := br.bits(1)
		if err != nil {
			return 0, err
		}
		code |= int(bit) ^ 1
		count := h.count[l]
		if code-first < count {
			return h.symbol[index+code-first], nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, fmt.Errorf("invalid code")
}

// explode decompresses a PKWare DCL stream into at most size bytes.
func explode(data []byte, size int) ([]byte, error) {
	out, err := explodeStream(data, size)
	if err != nil {
		return nil, fmt.Errorf("%w: explode: %v", ErrCorruptData, err)
	}
	return out, nil
}

func explodeStream(data []byte, size int) ([]byte, error) {
	br := newBitReader(data)

	lit, err := br.bits(8)
	if err != nil {
		return nil, err
	}
	if lit > 1 {
		return nil, fmt.Errorf("literal mode %d", lit)
	}
	dict, err := br.bits(8)
	if err != nil {
		return nil, err
	}
	if dict < 4 || dict > 6 {
		return nil, fmt.Errorf("dictionary size code %d", dict)
	}

	out := make([]byte, 0, size)
	for len(out) < size {
		flag, err := br.bits(1)
		if err != nil {
			return nil, err
		}

		if flag == 0 {
			var sym int
			if lit == 1 {
				sym, err = explodeLitCode.decode(br)
			} else {
				var v uint32
				v, err = br.bits(8)
				sym = int(v)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, byte(sym))
			continue
		}

		sym, err := explodeLenCode.decode(br)
		if err != nil {
			return nil, err
		}
		extra, err := br.bits(explodeLenExtra[sym])
		if err != nil {
			return nil, err
		}
		length := explodeLenBase[sym] + int(extra)
		if length == 519 {
			break
		}

		shift := uint(dict)
		if length == 2 {
			shift = 2
		}
		hi, err := explodeDistCode.decode(br)
		if err != nil {
			return nil, err
		}
		lo, err := br.bits(shift)
		if err != nil {
			return nil, err
		}
		dist := hi<<shift + int(lo) + 1
		if dist > len(out) {
			return nil, fmt.Errorf("distance %d too far back", dist)
		}

		if rem := size - len(out); length > rem {
			length = rem
		}
		for i := 0; i < length; i++ {
			out = append(out, out[len(out)-dist])
		}
	}

	return out, nil
}
