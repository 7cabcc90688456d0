// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"sync"
)

// Hash types for the hash function
const (
	hashTypeTableOffset = 0
	hashTypeNameA       = 1
	hashTypeNameB       = 2
	hashTypeFileKey     = 3
)

// Well-known table keys
const (
	keyHashTable  = 0xC3AF3770 // hashString("(hash table)", hashTypeFileKey)
	keyBlockTable = 0xEC83B3A3 // hashString("(block table)", hashTypeFileKey)
)

// cryptTable returns the shared encryption/hash lookup table.
// It is built on first use and never modified afterwards.
var cryptTable = sync.OnceValue(func() *[0x500]uint32 {
	var table [0x500]uint32
	seed := uint32(0x00100001)

	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 0x10

			seed = (seed*125 + 3) % 0x2AAAAB
			temp2 := seed & 0xFFFF

			table[index2] = temp1 | temp2
			index2 += 0x100
		}
	}

	return &table
})

// foldNameByte upper-cases ASCII letters and turns '/' into '\\'.
// Other bytes, including non-ASCII ones, are left alone.
func foldNameByte(c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 0x20
	case c == '/':
		return '\\'
	}
	return c
}

// foldName returns the form of name that hashString sees. Two names that
// fold to the same string name the same file.
func foldName(name string) string {
	b := []byte(name)
	for i, c := range b {
		b[i] = foldNameByte(c)
	}
	return string(b)
}

// hashString computes the MPQ hash of a string
func hashString(s string, hashType uint32) uint32 {
	table := cryptTable()
	seed1 := uint32(0x7FED7FED)
	seed2 := uint32(0xEEEEEEEE)

	for i := 0; i < len(s); i++ {
		ch := uint32(foldNameByte(s[i]))

		seed1 = table[hashType*0x100+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// decryptWords returns the decryption of src under key. src is not modified.
func decryptWords(src []uint32, key uint32) []uint32 {
	table := cryptTable()
	dst := make([]uint32, len(src))
	seed := uint32(0xEEEEEEEE)

	for i, encrypted := range src {
		seed += table[0x400+(key&0xFF)]
		plain := encrypted ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = plain + seed + (seed << 5) + 3
		dst[i] = plain
	}

	return dst
}

// decryptBytes returns the decryption of src under key. Only whole
// little-endian words are decrypted; a trailing partial word is copied as is.
func decryptBytes(src []byte, key uint32) []byte {
	plain := decryptWords(readUint32Array(src), key)

	dst := make([]byte, len(src))
	for i, w := range plain {
		binary.LittleEndian.PutUint32(dst[i*4:], w)
	}
	copy(dst[len(plain)*4:], src[len(plain)*4:])
	return dst
}

// fileKey computes the encryption key for a file
// based on its name and position relative to the archive start.
func fileKey(name string, filePos uint64, fileSize uint32, flags uint32) uint32 {
	key := hashString(baseName(name), hashTypeFileKey)

	if flags&fileFixKey != 0 {
		key = (key + uint32(filePos)) ^ fileSize
	}

	return key
}

// baseName strips any directory part from an archive path.
func baseName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '\\' || name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}
