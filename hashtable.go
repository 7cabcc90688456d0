// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"fmt"
	"math/bits"
)

// slotState tells whether a hash table slot was ever used.
type slotState uint8

const (
	slotEmpty    slotState = iota // never occupied, terminates a probe
	slotDeleted                   // tombstone, skipped by a probe
	slotOccupied                  // refers to a block table entry
)

// hashTableEntry represents an entry in the hash table
type hashTableEntry struct {
	HashA      uint32 // First hash of the file name
	HashB      uint32 // Second hash of the file name
	Locale     Locale // Locale ID
	Platform   uint16 // Platform ID (0 = default)
	State      slotState
	BlockIndex uint32 // Index into the block table, valid when State is slotOccupied
}

// hashTable is the decrypted, immutable hash table of an archive.
type hashTable struct {
	entries []hashTableEntry
}

// parseHashTable decrypts and decodes count records.
func parseHashTable(raw []byte, count uint32) (hashTable, error) {
	if count != 0 && bits.OnesCount32(count) != 1 {
		return hashTable{}, fmt.Errorf("%w: hash table size %d is not a power of two", ErrCorruptData, count)
	}

	words := decryptWords(readUint32Array(raw), keyHashTable)

	entries := make([]hashTableEntry, count)
	for i := range entries {
		w := words[i*4 : i*4+4]
		e := hashTableEntry{
			HashA:    w[0],
			HashB:    w[1],
			Locale:   Locale(w[2] & 0xFFFF),
			Platform: uint16(w[2] >> 16),
		}
		switch w[3] {
		case hashTableEmpty:
			e.State = slotEmpty
		case hashTableDeleted:
			e.State = slotDeleted
		default:
			e.State = slotOccupied
			e.BlockIndex = w[3]
		}
		entries[i] = e
	}

	return hashTable{entries: entries}, nil
}

// lookup probes for name and returns the block index of the best slot.
// An exact locale and platform match wins, then the first neutral-locale
// match, then the first match of any locale.
func (t hashTable) lookup(name string, locale Locale, platform uint16) (uint32, bool) {
	size := uint32(len(t.entries))
	if size == 0 {
		return 0, false
	}
	mask := size - 1

	hashA := hashString(name, hashTypeNameA)
	hashB := hashString(name, hashTypeNameB)
	idx := hashString(name, hashTypeTableOffset) & mask

	var neutral, first *hashTableEntry
probe:
	for i := uint32(0); i < size; i++ {
		entry := &t.entries[idx]
		idx = (idx + 1) & mask

		switch entry.State {
		case slotEmpty:
			break probe
		case slotDeleted:
			continue
		}

		if entry.HashA != hashA || entry.HashB != hashB {
			continue
		}
		if entry.Locale == locale && entry.Platform == platform {
			return entry.BlockIndex, true
		}
		if neutral == nil && entry.Locale == LocaleNeutral {
			neutral = entry
		}
		if first == nil {
			first = entry
		}
	}

	switch {
	case neutral != nil:
		return neutral.BlockIndex, true
	case first != nil:
		return first.BlockIndex, true
	}
	return 0, false
}

// locales returns every locale stored for name.
func (t hashTable) locales(name string) []Locale {
	size := uint32(len(t.entries))
	if size == 0 {
		return nil
	}
	mask := size - 1

	hashA := hashString(name, hashTypeNameA)
	hashB := hashString(name, hashTypeNameB)
	idx := hashString(name, hashTypeTableOffset) & mask

	var out []Locale
	for i := uint32(0); i < size; i++ {
		entry := &t.entries[idx]
		idx = (idx + 1) & mask
		if entry.State == slotEmpty {
			break
		}
		if entry.State == slotOccupied && entry.HashA == hashA && entry.HashB == hashB {
			out = append(out, entry.Locale)
		}
	}
	return out
}
