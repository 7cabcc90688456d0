// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"fmt"
)

// blockTableEntry represents an entry in the block table
type blockTableEntry struct {
	FilePos        uint32 // Offset of the file data (low 32 bits)
	CompressedSize uint32 // Compressed file size
	FileSize       uint32 // Uncompressed file size
	Flags          uint32 // File flags
	FilePosHi      uint16 // High 16 bits of file offset (from hi-block table)
}

// filePos64 returns the full 64-bit file position relative to the archive start
func (b *blockTableEntry) filePos64() uint64 {
	return uint64(b.FilePos) | (uint64(b.FilePosHi) << 32)
}

// blockTable is the decrypted, immutable block table of an archive.
type blockTable struct {
	entries []blockTableEntry
}

// parseBlockTable decrypts raw and merges the optional hi-block words.
func parseBlockTable(raw []byte, count uint32, hi []byte) blockTable {
	words := decryptWords(readUint32Array(raw), keyBlockTable)

	entries := make([]blockTableEntry, count)
	for i := range entries {
		entries[i] = blockTableEntry{
			FilePos:        words[i*4],
			CompressedSize: words[i*4+1],
			FileSize:       words[i*4+2],
			Flags:          words[i*4+3],
		}
		if hi != nil {
			entries[i].FilePosHi = binary.LittleEndian.Uint16(hi[i*2:])
		}
	}

	return blockTable{entries: entries}
}

// entry returns the record at index. Deletion markers are returned too.
func (t blockTable) entry(index uint32) (*blockTableEntry, error) {
	if index >= uint32(len(t.entries)) {
		return nil, fmt.Errorf("%w: block index %d out of range (%d entries)", ErrFileNotFound, index, len(t.entries))
	}
	block := &t.entries[index]
	if block.Flags&fileExists == 0 {
		return nil, fmt.Errorf("%w: block %d has no data", ErrFileNotFound, index)
	}
	return block, nil
}
