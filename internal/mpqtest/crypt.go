// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpqtest

import (
	"encoding/binary"
	"strings"
)

var table = func() (t [0x500]uint32) {
	seed := uint32(0x00100001)
	for i := 0; i < 0x100; i++ {
		for j := i; j < 0x500; j += 0x100 {
			seed = (seed*125 + 3) % 0x2AAAAB
			hi := (seed & 0xFFFF) << 16
			seed = (seed*125 + 3) % 0x2AAAAB
			t[j] = hi | seed&0xFFFF
		}
	}
	return t
}()

// Hash computes the archive string hash of the given type.
func Hash(s string, hashType uint32) uint32 {
	seed1, seed2 := uint32(0x7FED7FED), uint32(0xEEEEEEEE)
	for i := 0; i < len(s); i++ {
		ch := uint32(s[i])
		switch {
		case 'a' <= ch && ch <= 'z':
			ch -= 'a' - 'A'
		case ch == '/':
			ch = '\\'
		}
		seed1 = table[hashType<<8+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + seed2<<5 + 3
	}
	return seed1
}

// FileKey derives the key of an encrypted file stored at pos.
func FileKey(name string, pos, size, flags uint32) uint32 {
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	key := Hash(name, 3)
	if flags&FlagFixKey != 0 {
		key = (key + pos) ^ size
	}
	return key
}

// Encrypt returns data encrypted with key. A trailing partial word is
// left as is.
func Encrypt(data []byte, key uint32) []byte {
	return encrypt(append([]byte(nil), data...), key)
}

func encrypt(data []byte, key uint32) []byte {
	seed := uint32(0xEEEEEEEE)
	for i := 0; i+4 <= len(data); i += 4 {
		seed += table[0x400+key&0xFF]
		plain := binary.LittleEndian.Uint32(data[i:])
		binary.LittleEndian.PutUint32(data[i:], plain^(key+seed))
		key = (^key<<0x15 + 0x11111111) | key>>0x0B
		seed = plain + seed + seed<<5 + 3
	}
	return data
}
