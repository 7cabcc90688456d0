// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"fmt"
)

// decodeFile reconstructs the content of block. name is needed to derive
// the key of encrypted files.
func (a *Archive) decodeFile(name string, block *blockTableEntry) ([]byte, error) {
	if block.FileSize == 0 {
		return []byte{}, nil
	}

	filePos := block.filePos64()
	data, err := a.src.read(a.offset+int64(filePos), uint64(block.CompressedSize))
	if err != nil {
		return nil, fmt.Errorf("read file data: %w", err)
	}

	var key uint32
	if block.Flags&fileEncrypted != 0 {
		key = fileKey(name, filePos, block.FileSize, block.Flags)
	}

	var fileData []byte
	switch {
	case block.Flags&fileSingleUnit != 0:
		// Single unit file - one sector covering the whole file
		if block.Flags&fileEncrypted != 0 {
			data = decryptBytes(data, key)
		}
		fileData, err = decodeSector(data, int(block.FileSize), block.Flags)
	case block.Flags&fileCompressMask != 0:
		fileData, err = a.decodeSectors(name, data, block, key)
	default:
		fileData, err = a.decodeStoredSectors(data, block, key)
	}
	if err != nil {
		return nil, err
	}

	if len(fileData) != int(block.FileSize) {
		return nil, fmt.Errorf("%w: decoded %d bytes, block declares %d", ErrCorruptData, len(fileData), block.FileSize)
	}
	return fileData, nil
}

// decodeSector decompresses one decrypted sector of expected uncompressed size.
// A sector as large as its uncompressed size is stored as is.
func decodeSector(data []byte, expected int, flags uint32) ([]byte, error) {
	if len(data) >= expected {
		out := make([]byte, expected)
		copy(out, data)
		return out, nil
	}

	switch {
	case flags&fileCompress != 0:
		return decompressData(data, expected)
	case flags&fileImplode != 0:
		out, err := explode(data, expected)
		if err != nil {
			return nil, err
		}
		if len(out) != expected {
			return nil, fmt.Errorf("%w: exploded %d bytes, want %d", ErrCorruptData, len(out), expected)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: stored sector holds %d bytes, want %d", ErrCorruptData, len(data), expected)
}

// decodeSectors handles compressed files split into sectors. The data starts
// with a table of sector offsets relative to the start of the block.
func (a *Archive) decodeSectors(name string, data []byte, block *blockTableEntry, key uint32) ([]byte, error) {
	encrypted := block.Flags&fileEncrypted != 0
	sectorSize := a.sectorSize
	numSectors := (block.FileSize + sectorSize - 1) / sectorSize

	// numSectors+1 entries, the last one is the end of the last sector.
	// A checksum sector adds one more entry.
	numOffsets := numSectors + 1
	if block.Flags&fileSectorCRC != 0 {
		numOffsets++
	}
	offsetTableSize := uint64(numOffsets) * 4
	if uint64(len(data)) < offsetTableSize {
		return nil, fmt.Errorf("%w: block of %d bytes too small for %d sector offsets", ErrCorruptData, len(data), numOffsets)
	}

	table := data[:offsetTableSize]
	if encrypted {
		// Offset table is encrypted with key-1
		table = decryptBytes(table, key-1)
	}
	offsets := readUint32Array(table)

	for i := 0; i+1 < len(offsets); i++ {
		if offsets[i] > offsets[i+1] {
			return nil, fmt.Errorf("%w: sector offsets not ascending at %d: %d > %d", ErrCorruptData, i, offsets[i], offsets[i+1])
		}
	}
	if end := offsets[len(offsets)-1]; uint64(end) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: sector data ends at %d, block is %d bytes", ErrOutOfBounds, end, len(data))
	}
	if uint64(offsets[0]) < offsetTableSize {
		return nil, fmt.Errorf("%w: first sector at %d overlaps the offset table", ErrCorruptData, offsets[0])
	}

	var checksums []uint32
	if block.Flags&fileSectorCRC != 0 {
		var err error
		checksums, err = readSectorChecksums(data[offsets[numSectors]:offsets[numSectors+1]], int(numSectors))
		if err != nil {
			if err := a.checksumProblem(name, -1, err); err != nil {
				return nil, err
			}
		}
	}

	result := make([]byte, 0, block.FileSize)
	for i := uint32(0); i < numSectors; i++ {
		sectorData := data[offsets[i]:offsets[i+1]]

		if encrypted {
			// Decrypt sector with key+sectorIndex
			sectorData = decryptBytes(sectorData, key+i)
		}

		if checksums != nil && checksums[i] != 0 {
			if got := sectorChecksum(sectorData); got != checksums[i] {
				err := fmt.Errorf("%w: sector checksum 0x%08X, stored 0x%08X", ErrCorruptData, got, checksums[i])
				if err := a.checksumProblem(name, int(i), err); err != nil {
					return nil, err
				}
			}
		}

		// Last sector may be smaller
		expectedSize := sectorSize
		if i == numSectors-1 {
			expectedSize = block.FileSize - (i * sectorSize)
		}

		decoded, err := decodeSector(sectorData, int(expectedSize), block.Flags)
		if err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
		result = append(result, decoded...)
	}

	return result, nil
}

// decodeStoredSectors handles uncompressed files split into sectors. There
// is no offset table; every sector but the last is full size.
func (a *Archive) decodeStoredSectors(data []byte, block *blockTableEntry, key uint32) ([]byte, error) {
	if uint64(len(data)) < uint64(block.FileSize) {
		return nil, fmt.Errorf("%w: stored block of %d bytes, file is %d bytes", ErrCorruptData, len(data), block.FileSize)
	}
	if block.Flags&fileEncrypted == 0 {
		out := make([]byte, block.FileSize)
		copy(out, data)
		return out, nil
	}

	result := make([]byte, 0, block.FileSize)
	for i, start := uint32(0), uint32(0); start < block.FileSize; i, start = i+1, start+a.sectorSize {
		end := min(start+a.sectorSize, block.FileSize)
		result = append(result, decryptBytes(data[start:end], key+i)...)
	}
	return result, nil
}

// readSectorChecksums decodes the checksum sector. It is never encrypted
// and is compressed when smaller than its decoded size.
func readSectorChecksums(data []byte, numSectors int) ([]uint32, error) {
	size := numSectors * 4
	if len(data) < size {
		decoded, err := decompressData(data, size)
		if err != nil {
			return nil, fmt.Errorf("sector checksums: %w", err)
		}
		data = decoded
	}
	return readUint32Array(data[:size]), nil
}

// checksumProblem reports a checksum failure. It returns err when strict
// checking is enabled and logs a warning otherwise.
func (a *Archive) checksumProblem(name string, sector int, err error) error {
	if a.strictChecksums {
		if sector >= 0 {
			return fmt.Errorf("%s sector %d: %w", name, sector, err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	a.logger.Warn("sector checksum problem", "file", name, "sector", sector, "err", err)
	return nil
}
