// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

const (
	attributesVersion      = 100
	attributesFlagCRC32    = 0x00000001
	attributesFlagFileTime = 0x00000002
	attributesFlagMD5      = 0x00000004
	attributesFlagPatchBit = 0x00000008
)

// Attributes holds the per-block data of the (attributes) file. Each slice
// is indexed by block table index and is nil when the archive does not record it.
type Attributes struct {
	Flags    uint32
	CRC32    []uint32
	FileTime []uint64 // Windows FILETIME values
	MD5      [][md5.Size]byte
	PatchBit []bool
}

// ModTime converts the FILETIME of block index to a time.
func (at *Attributes) ModTime(index int) (time.Time, bool) {
	if index < 0 || index >= len(at.FileTime) || at.FileTime[index] == 0 {
		return time.Time{}, false
	}
	// 100ns intervals since 1601-01-01
	const epochDelta = 116444736000000000
	ft := int64(at.FileTime[index]) - epochDelta
	return time.Unix(ft/10000000, (ft%10000000)*100).UTC(), true
}

// Attributes reads and parses the archive's (attributes) file.
func (a *Archive) Attributes() (*Attributes, error) {
	data, err := a.ReadFile(attributesName)
	if err != nil {
		return nil, err
	}
	return parseAttributes(data, len(a.blockTable.entries))
}

func parseAttributes(data []byte, blockCount int) (*Attributes, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: attributes of %d bytes", ErrCorruptData, len(data))
	}
	if v := binary.LittleEndian.Uint32(data[0:4]); v != attributesVersion {
		return nil, fmt.Errorf("%w: attributes version %d", ErrCorruptData, v)
	}

	at := &Attributes{Flags: binary.LittleEndian.Uint32(data[4:8])}
	r := bytes.NewReader(data[8:])

	if at.Flags&attributesFlagCRC32 != 0 {
		at.CRC32 = make([]uint32, blockCount)
		if err := binary.Read(r, binary.LittleEndian, at.CRC32); err != nil {
			return nil, fmt.Errorf("%w: attributes CRC32 table: %v", ErrCorruptData, err)
		}
	}
	if at.Flags&attributesFlagFileTime != 0 {
		at.FileTime = make([]uint64, blockCount)
		if err := binary.Read(r, binary.LittleEndian, at.FileTime); err != nil {
			return nil, fmt.Errorf("%w: attributes file times: %v", ErrCorruptData, err)
		}
	}
	if at.Flags&attributesFlagMD5 != 0 {
		at.MD5 = make([][md5.Size]byte, blockCount)
		if err := binary.Read(r, binary.LittleEndian, at.MD5); err != nil {
			return nil, fmt.Errorf("%w: attributes MD5 table: %v", ErrCorruptData, err)
		}
	}
	if at.Flags&attributesFlagPatchBit != 0 {
		bits := make([]byte, (blockCount+7)/8)
		if _, err := io.ReadFull(r, bits); err != nil {
			return nil, fmt.Errorf("%w: attributes patch bits: %v", ErrCorruptData, err)
		}
		at.PatchBit = make([]bool, blockCount)
		for i := range at.PatchBit {
			at.PatchBit[i] = bits[i/8]&(1<<(i%8)) != 0
		}
	}

	return at, nil
}

// VerifyFile decodes the named file and compares it with the CRC32 and MD5
// recorded in (attributes). Values of zero are treated as not recorded.
func (a *Archive) VerifyFile(name string) error {
	at, err := a.Attributes()
	if err != nil {
		return fmt.Errorf("read attributes: %w", err)
	}
	return a.verifyWith(at, name)
}

func (a *Archive) verifyWith(at *Attributes, name string) error {
	index, _, err := a.findFile(normalizePath(name), LocaleNeutral, 0)
	if err != nil {
		return err
	}
	data, err := a.ReadFile(name)
	if err != nil {
		return err
	}

	if int(index) < len(at.CRC32) && at.CRC32[index] != 0 {
		if got := crc32.ChecksumIEEE(data); got != at.CRC32[index] {
			return fmt.Errorf("%w: %s CRC32 0x%08X, recorded 0x%08X", ErrCorruptData, name, got, at.CRC32[index])
		}
	}
	if int(index) < len(at.MD5) && at.MD5[index] != [md5.Size]byte{} {
		if got := md5.Sum(data); got != at.MD5[index] {
			return fmt.Errorf("%w: %s MD5 %x, recorded %x", ErrCorruptData, name, got, at.MD5[index])
		}
	}
	return nil
}
