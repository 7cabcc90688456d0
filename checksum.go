// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

// sectorChecksum computes the Adler-32 value stored in a sector CRC block.
// The archive format seeds it with zero rather than the usual one.
func sectorChecksum(data []byte) uint32 {
	const mod = 65521
	var a, b uint32
	for _, v := range data {
		a = (a + uint32(v)) % mod
		b = (b + a) % mod
	}
	return (b << 16) | a
}
