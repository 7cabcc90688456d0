// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MPQ format constants
const (
	// Magic signature "MPQ\x1A" in little-endian
	mpqMagic = 0x1A51504D

	// User data signature "MPQ\x1B"; the block points at the real header
	mpqUserDataMagic = 0x1B51504D

	// Format versions
	formatVersion1 = 0 // Original format (up to 4GB)
	formatVersion2 = 1 // Extended format (Burning Crusade+)

	// Header sizes
	headerSizeV1       = 0x20 // 32 bytes
	headerSizeV2       = 0x2C // 44 bytes
	userDataHeaderSize = 0x10

	// Headers start on 512-byte boundaries
	headerAlignment = 0x200

	// Table record sizes
	hashEntrySize  = 16
	blockEntrySize = 16

	// Block table entry flags
	fileImplode      = 0x00000100 // Imploded (PKWARE compression)
	fileCompress     = 0x00000200 // Compressed (multi-algorithm)
	fileEncrypted    = 0x00010000 // Encrypted
	fileFixKey       = 0x00020000 // Key adjusted by block offset
	filePatchFile    = 0x00100000 // Patch file
	fileSingleUnit   = 0x01000000 // Single unit (not split into sectors)
	fileDeleteMarker = 0x02000000 // File is a deletion marker
	fileSectorCRC    = 0x04000000 // Sector CRC values after data
	fileExists       = 0x80000000 // File exists

	fileCompressMask = fileImplode | fileCompress

	// Hash table entry constants
	hashTableEmpty   = 0xFFFFFFFF
	hashTableDeleted = 0xFFFFFFFE
)

// archiveHeader holds the fields of a V1 or V2 header.
// Fields that the parsed version does not define are zero.
type archiveHeader struct {
	HeaderSize       uint32 // Size of the header (0x20 for V1, 0x2C for V2)
	ArchiveSize      uint32 // Size of the entire archive (deprecated in V2)
	FormatVersion    uint16 // Format version (0 = V1, 1 = V2)
	SectorSizeShift  uint16 // Sector size is 512 << SectorSizeShift
	HashTableOffset  uint32 // Offset to hash table (low 32 bits)
	BlockTableOffset uint32 // Offset to block table (low 32 bits)
	HashTableSize    uint32 // Number of entries in hash table
	BlockTableSize   uint32 // Number of entries in block table

	// V2 extensions
	HiBlockTableOffset64 uint64 // 64-bit offset to the hi-block table
	HashTableOffsetHi    uint16 // High 16 bits of hash table offset
	BlockTableOffsetHi   uint16 // High 16 bits of block table offset
}

// hashTableOffset64 returns the full 64-bit hash table offset
func (h *archiveHeader) hashTableOffset64() uint64 {
	return uint64(h.HashTableOffset) | (uint64(h.HashTableOffsetHi) << 32)
}

// blockTableOffset64 returns the full 64-bit block table offset
func (h *archiveHeader) blockTableOffset64() uint64 {
	return uint64(h.BlockTableOffset) | (uint64(h.BlockTableOffsetHi) << 32)
}

// sectorSize returns the size in bytes of a full sector.
func (h *archiveHeader) sectorSize() uint32 {
	return 512 << h.SectorSizeShift
}

// source is a bounds-checked view of the archive bytes.
type source struct {
	r    io.ReaderAt
	size int64
}

// read returns a fresh copy of n bytes at off.
func (s source) read(off int64, n uint64) ([]byte, error) {
	if off < 0 || n > uint64(s.size) || uint64(off) > uint64(s.size)-n {
		return nil, fmt.Errorf("%w: %d bytes at offset %d (archive is %d bytes)", ErrOutOfBounds, n, off, s.size)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := s.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, off, err)
	}
	return buf, nil
}

// findHeader scans 512-byte boundaries for the archive header and returns
// the absolute offset of the archive start.
func findHeader(src source) (int64, error) {
	for off := int64(0); off+headerSizeV1 <= src.size; off += headerAlignment {
		sig, err := src.read(off, 4)
		if err != nil {
			return 0, err
		}

		switch binary.LittleEndian.Uint32(sig) {
		case mpqMagic:
			return off, nil
		case mpqUserDataMagic:
			ud, err := src.read(off, userDataHeaderSize)
			if err != nil {
				continue
			}
			target := off + int64(binary.LittleEndian.Uint32(ud[8:12]))
			if target+headerSizeV1 > src.size {
				continue
			}
			if sig, err := src.read(target, 4); err == nil && binary.LittleEndian.Uint32(sig) == mpqMagic {
				return target, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: no MPQ header signature found", ErrInvalidFormat)
}

// parseHeader decodes the header at off. Only the fields defined for the
// header's format version are read; unknown versions are rejected.
func parseHeader(src source, off int64) (*archiveHeader, error) {
	raw, err := src.read(off, headerSizeV1)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if magic := binary.LittleEndian.Uint32(raw[0:4]); magic != mpqMagic {
		return nil, fmt.Errorf("%w: invalid MPQ magic: 0x%08X", ErrInvalidFormat, magic)
	}

	h := &archiveHeader{
		HeaderSize:       binary.LittleEndian.Uint32(raw[4:8]),
		ArchiveSize:      binary.LittleEndian.Uint32(raw[8:12]),
		FormatVersion:    binary.LittleEndian.Uint16(raw[12:14]),
		SectorSizeShift:  binary.LittleEndian.Uint16(raw[14:16]),
		HashTableOffset:  binary.LittleEndian.Uint32(raw[16:20]),
		BlockTableOffset: binary.LittleEndian.Uint32(raw[20:24]),
		HashTableSize:    binary.LittleEndian.Uint32(raw[24:28]),
		BlockTableSize:   binary.LittleEndian.Uint32(raw[28:32]),
	}

	switch h.FormatVersion {
	case formatVersion1:
		// The base header is all there is.
	case formatVersion2:
		if h.HeaderSize < headerSizeV2 {
			return nil, fmt.Errorf("%w: V2 header size 0x%X is smaller than 0x%X", ErrCorruptData, h.HeaderSize, headerSizeV2)
		}
		ext, err := src.read(off+headerSizeV1, headerSizeV2-headerSizeV1)
		if err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
		h.HiBlockTableOffset64 = binary.LittleEndian.Uint64(ext[0:8])
		h.HashTableOffsetHi = binary.LittleEndian.Uint16(ext[8:10])
		h.BlockTableOffsetHi = binary.LittleEndian.Uint16(ext[10:12])
	default:
		return nil, fmt.Errorf("%w: %d (only V1 and V2 are supported)", ErrUnsupportedVersion, h.FormatVersion)
	}

	if h.SectorSizeShift > 23 {
		return nil, fmt.Errorf("%w: sector size shift %d", ErrCorruptData, h.SectorSizeShift)
	}

	// Table ranges must be inside the buffer before anything is decrypted.
	if err := checkRange(src, off, h.hashTableOffset64(), uint64(h.HashTableSize)*hashEntrySize, "hash table"); err != nil {
		return nil, err
	}
	if err := checkRange(src, off, h.blockTableOffset64(), uint64(h.BlockTableSize)*blockEntrySize, "block table"); err != nil {
		return nil, err
	}
	if h.HiBlockTableOffset64 != 0 {
		if err := checkRange(src, off, h.HiBlockTableOffset64, uint64(h.BlockTableSize)*2, "hi-block table"); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// checkRange verifies that length bytes at rel (relative to base) fit in src.
func checkRange(src source, base int64, rel, length uint64, what string) error {
	start := uint64(base) + rel
	if start < rel || length > uint64(src.size) || start > uint64(src.size)-length {
		return fmt.Errorf("%w: %s at 0x%X (+%d bytes) exceeds archive of %d bytes", ErrOutOfBounds, what, rel, length, src.size)
	}
	return nil
}

// readUint32Array decodes little-endian words.
func readUint32Array(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}
