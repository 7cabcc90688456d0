// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import "errors"

var errBitstreamTruncated = errors.New("bit stream truncated")

// bitReader reads a byte slice as a stream of bits, least significant bit first.
type bitReader struct {
	src []byte
	pos int
	buf uint32
	n   uint
}

func newBitReader(src []byte) *bitReader {
	return &bitReader{src: src}
}

// bits returns the next count bits, count <= 24.
func (r *bitReader) bits(count uint) (uint32, error) {
	for r.n < count {
		if r.pos >= len(r.src) {
			return 0, errBitstreamTruncated
		}
		r.buf |= uint32(r.src[r.pos]) << r.n
		r.pos++
		r.n += 8
	}
	v := r.buf & (1<<count - 1)
	r.buf >>= count
	r.n -= count
	return v, nil
}
