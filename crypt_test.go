// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"testing"

	"github.com/nazarpunk/go-mpq/internal/mpqtest"
)

func TestHashString(t *testing.T) {
	// Decryption keys of the two tables:
	// MPQ_KEY_HASH_TABLE = 0xC3AF3770 (HashString("(hash table)", MPQ_HASH_FILE_KEY))
	// MPQ_KEY_BLOCK_TABLE = 0xEC83B3A3 (HashString("(block table)", MPQ_HASH_FILE_KEY))
	tests := []struct {
		input    string
		hashType uint32
		expected uint32
	}{
		{"(hash table)", hashTypeFileKey, keyHashTable},
		{"(block table)", hashTypeFileKey, keyBlockTable},
	}

	for _, test := range tests {
		got := hashString(test.input, test.hashType)
		if got != test.expected {
			t.Errorf("hashString(%q, %d) = 0x%08X, want 0x%08X",
				test.input, test.hashType, got, test.expected)
		}
	}
}

// TestHashStringNameHashes checks the two name hashes used for lookups
// against a known pair for a shipped file name.
func TestHashStringNameHashes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hashA uint32
		hashB uint32
	}{
		{
			name:  "backslashes",
			input: "ReplaceableTextures\\CommandButtons\\BTNHaboss79.blp",
			hashA: 0x8bd6929a,
			hashB: 0xfd55129b,
		},
		{
			name:  "forward slashes",
			input: "ReplaceableTextures/CommandButtons/BTNHaboss79.blp",
			hashA: 0x8bd6929a,
			hashB: 0xfd55129b,
		},
		{
			name:  "lowercase",
			input: "replaceabletextures\\commandbuttons\\btnhaboss79.blp",
			hashA: 0x8bd6929a,
			hashB: 0xfd55129b,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			gotA := hashString(test.input, hashTypeNameA)
			gotB := hashString(test.input, hashTypeNameB)

			if gotA != test.hashA {
				t.Errorf("hashString(%q, hashTypeNameA) = 0x%08X, want 0x%08X",
					test.input, gotA, test.hashA)
			}
			if gotB != test.hashB {
				t.Errorf("hashString(%q, hashTypeNameB) = 0x%08X, want 0x%08X",
					test.input, gotB, test.hashB)
			}
		})
	}
}

func TestHashStringCaseInsensitive(t *testing.T) {
	for ht := uint32(0); ht < 4; ht++ {
		if a, b := hashString("Foo.mdx", ht), hashString("FOO.MDX", ht); a != b {
			t.Errorf("hash type %d: 0x%08X != 0x%08X", ht, a, b)
		}
	}
}

func TestHashStringMatchesBuilder(t *testing.T) {
	for _, name := range []string{"", "a", "(listfile)", "war3map.j", "Units\\Human\\Footman.mdx", "\xC0\xE0.txt", "Юниты/é.blp"} {
		for ht := uint32(0); ht < 4; ht++ {
			if got, want := hashString(name, ht), mpqtest.Hash(name, ht); got != want {
				t.Errorf("hashString(%q, %d) = 0x%08X, builder has 0x%08X", name, ht, got, want)
			}
		}
	}
}

// TestCryptTableInitialization checks every entry by recomputing the table
// and a few entries against known values.
func TestCryptTableInitialization(t *testing.T) {
	table := cryptTable()
	if len(table) != 0x500 {
		t.Errorf("cryptTable length = %d, want %d", len(table), 0x500)
	}

	seed := uint32(0x00100001)
	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 0x10
			seed = (seed*125 + 3) % 0x2AAAAB
			temp2 := seed & 0xFFFF
			expected := temp1 | temp2

			if table[index2] != expected {
				t.Errorf("cryptTable[0x%03X] = 0x%08X, want 0x%08X", index2, table[index2], expected)
			}
			index2 += 0x100
		}
	}

	// Known values; the first two are the widely quoted ones.
	known := []struct {
		index int
		want  uint32
	}{
		{0x000, 0x55C636E2},
		{0x001, 0x02BE0170},
		{0x100, 0x76F8C1B1},
		{0x400, 0x193AA698},
		{0x4FF, 0x7303286C},
	}
	for _, k := range known {
		if table[k.index] != k.want {
			t.Errorf("cryptTable[0x%03X] = 0x%08X, want 0x%08X", k.index, table[k.index], k.want)
		}
	}

	if cryptTable() != table {
		t.Error("cryptTable returned a different table on the second call")
	}
}

func TestDecryptBytes(t *testing.T) {
	plain := []byte("The quick brown fox jumps over the lazy dog!!") // 45 bytes
	const key = 0x12345678

	encrypted := mpqtest.Encrypt(plain, key)
	if bytes.Equal(encrypted[:44], plain[:44]) {
		t.Fatal("encryption did not change the data")
	}
	if encrypted[44] != plain[44] {
		t.Errorf("trailing byte changed: got 0x%02X, want 0x%02X", encrypted[44], plain[44])
	}

	before := bytes.Clone(encrypted)
	got := decryptBytes(encrypted, key)
	if !bytes.Equal(got, plain) {
		t.Errorf("decryptBytes = %q, want %q", got, plain)
	}
	if !bytes.Equal(encrypted, before) {
		t.Error("decryptBytes modified its input")
	}
}

func TestDecryptReferenceVectors(t *testing.T) {
	tests := []struct {
		name string
		key  uint32
		enc  []byte
		want []byte
	}{
		{
			name: "text",
			key:  0x12345678,
			enc: []byte{
				0x46, 0xA8, 0x71, 0x0B, 0xB6, 0x83, 0x3C, 0xFC, 0x5F, 0xEE, 0xA6, 0xBE,
				0xF2, 0x4C, 0x66, 0x46, 0x48, 0x3E, 0xE1, 0x41, 0x46, 0xDE, 0x7A, 0xBF,
				0x3A, 0x45, 0xEA, 0x91, 0xEE, 0x7F, 0x0A, 0x6F, 0x24, 0x4B, 0x0D, 0x68,
				0x93, 0x84, 0xE5, 0xAF, 0xB1, 0x96, 0x86, 0x14, 0x21,
			},
			want: []byte("The quick brown fox jumps over the lazy dog!!"),
		},
		{
			// Empty hash table slots as stored on disk.
			name: "empty hash slots",
			key:  keyHashTable,
			enc:  wordsToBytes([]uint32{0x79C33033, 0x9832D928, 0x9F6F73BC, 0xE94E88B2}),
			want: wordsToBytes([]uint32{0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF}),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := decryptBytes(test.enc, test.key); !bytes.Equal(got, test.want) {
				t.Errorf("decryptBytes = % X, want % X", got, test.want)
			}
			if got := mpqtest.Encrypt(test.want, test.key); !bytes.Equal(got, test.enc) {
				t.Errorf("builder Encrypt = % X, want % X", got, test.enc)
			}
		})
	}
}

func TestDecryptWordsWrongKey(t *testing.T) {
	plain := []uint32{1, 2, 3, 4}
	encrypted := readUint32Array(mpqtest.Encrypt(wordsToBytes(plain), 0xAABBCCDD))

	if got := decryptWords(encrypted, 0xAABBCCDD); !equalWords(got, plain) {
		t.Errorf("decryptWords with the right key = %v, want %v", got, plain)
	}
	if got := decryptWords(encrypted, 0xAABBCCDE); equalWords(got, plain) {
		t.Error("decryptWords with the wrong key recovered the plaintext")
	}
}

func TestFileKey(t *testing.T) {
	base := hashString("Footman.mdx", hashTypeFileKey)

	if got := fileKey("Units\\Human\\Footman.mdx", 0x400, 1000, fileEncrypted); got != base {
		t.Errorf("fileKey = 0x%08X, want 0x%08X", got, base)
	}
	if got := fileKey("Units/Human/Footman.mdx", 0x400, 1000, fileEncrypted); got != base {
		t.Errorf("fileKey with forward slashes = 0x%08X, want 0x%08X", got, base)
	}

	want := (base + 0x400) ^ 1000
	if got := fileKey("Units\\Human\\Footman.mdx", 0x400, 1000, fileEncrypted|fileFixKey); got != want {
		t.Errorf("fileKey with fix-key = 0x%08X, want 0x%08X", got, want)
	}
	if got := mpqtest.FileKey("Units\\Human\\Footman.mdx", 0x400, 1000, fileEncrypted|fileFixKey); got != want {
		t.Errorf("builder file key = 0x%08X, want 0x%08X", got, want)
	}
}

func wordsToBytes(ws []uint32) []byte {
	out := make([]byte, 4*len(ws))
	for i, w := range ws {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
