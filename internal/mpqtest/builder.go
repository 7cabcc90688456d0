// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package mpqtest builds small MPQ archives in memory for tests. It carries
// its own hashing and encryption so that archives it produces check the
// reader rather than mirror it.
package mpqtest

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zlib"
)

// Block flags understood by Build.
const (
	FlagImplode      = 0x00000100
	FlagCompress     = 0x00000200
	FlagEncrypted    = 0x00010000
	FlagFixKey       = 0x00020000
	FlagPatchFile    = 0x00100000
	FlagSingleUnit   = 0x01000000
	FlagDeleteMarker = 0x02000000
	FlagSectorCRC    = 0x04000000
	flagExists       = 0x80000000
)

// Sector compression masks understood by Build.
const (
	MaskZlib  = 0x02
	MaskBzip2 = 0x10
)

const (
	hashEmpty   = 0xFFFFFFFF
	hashDeleted = 0xFFFFFFFE

	keyHashTable  = 0xC3AF3770
	keyBlockTable = 0xEC83B3A3
)

// File is one entry of a built archive.
type File struct {
	Name     string
	Data     []byte
	Locale   uint16
	Platform uint16

	// Flags are added to the exists flag. FlagCompress is implied by
	// Mask or Masks.
	Flags uint32

	// Mask compresses every sector; Masks sets one mask per sector.
	// A zero mask stores the sector as is.
	Mask  byte
	Masks []byte

	// Raw replaces the encoded content of a single-unit file.
	Raw []byte

	// Tombstone marks the home slot of the file deleted before inserting it.
	Tombstone bool

	// BadChecksum corrupts the stored checksum of the first sector.
	BadChecksum bool
}

// Builder describes the archive to produce.
type Builder struct {
	Files []File

	// Prefix is the number of bytes before the archive, a multiple of 512.
	Prefix int
	// UserData puts an MPQ\x1B block at Prefix that points at the header.
	UserData bool
	// Version is 0 for V1 headers and 1 for V2 headers.
	Version     uint16
	SectorShift uint16
	// HashSize defaults to the next power of two of twice the file count.
	HashSize uint32

	Listfile   bool
	Attributes bool
	// StrongSignature appends an NGIS block after the archive.
	StrongSignature []byte
}

// Build returns the encoded archive.
func (b Builder) Build() ([]byte, error) {
	headerSize := uint32(0x20)
	if b.Version == 1 {
		headerSize = 0x2C
	}
	sectorSize := uint32(512) << b.SectorShift

	files := append([]File(nil), b.Files...)
	if b.Listfile {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}
		files = append(files, File{Name: "(listfile)", Data: []byte(strings.Join(names, "\r\n"))})
	}
	if b.Attributes {
		files = append(files, File{Name: "(attributes)", Data: attributes(files)})
	}

	var body bytes.Buffer
	blocks := make([][4]uint32, len(files))
	for i, f := range files {
		pos := headerSize + uint32(body.Len())
		block, stored, err := encodeFile(f, pos, sectorSize)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		blocks[i] = block
		body.Write(stored)
	}

	hashSize := b.HashSize
	if hashSize == 0 {
		hashSize = 4
		for hashSize < uint32(2*len(files)) {
			hashSize <<= 1
		}
	}
	slots, err := hashTable(files, hashSize)
	if err != nil {
		return nil, err
	}

	hashOffset := headerSize + uint32(body.Len())
	body.Write(encrypt(words(flatten(slots)), keyHashTable))
	blockOffset := headerSize + uint32(body.Len())
	body.Write(encrypt(words(flatten(blocks)), keyBlockTable))
	var hiOffset uint32
	if b.Version == 1 {
		hiOffset = headerSize + uint32(body.Len())
		body.Write(make([]byte, 2*len(blocks)))
	}
	archiveSize := headerSize + uint32(body.Len())

	var out bytes.Buffer
	out.Write(make([]byte, b.Prefix))
	if b.UserData {
		ud := make([]byte, 0x200)
		binary.LittleEndian.PutUint32(ud[0:], 0x1B51504D)
		binary.LittleEndian.PutUint32(ud[4:], 0x200-0x10)
		binary.LittleEndian.PutUint32(ud[8:], 0x200)
		binary.LittleEndian.PutUint32(ud[12:], 0x10)
		out.Write(ud)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], 0x1A51504D)
	binary.LittleEndian.PutUint32(header[4:], headerSize)
	binary.LittleEndian.PutUint32(header[8:], archiveSize)
	binary.LittleEndian.PutUint16(header[12:], b.Version)
	binary.LittleEndian.PutUint16(header[14:], b.SectorShift)
	binary.LittleEndian.PutUint32(header[16:], hashOffset)
	binary.LittleEndian.PutUint32(header[20:], blockOffset)
	binary.LittleEndian.PutUint32(header[24:], hashSize)
	binary.LittleEndian.PutUint32(header[28:], uint32(len(blocks)))
	if b.Version == 1 {
		binary.LittleEndian.PutUint64(header[32:], uint64(hiOffset))
	}
	out.Write(header)
	out.Write(body.Bytes())

	if b.StrongSignature != nil {
		out.WriteString("NGIS")
		out.Write(b.StrongSignature)
	}
	return out.Bytes(), nil
}

// MustBuild is Build for fixtures that cannot fail.
func (b Builder) MustBuild() []byte {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

func encodeFile(f File, pos, sectorSize uint32) ([4]uint32, []byte, error) {
	flags := flagExists | f.Flags
	size := uint32(len(f.Data))
	if flags&FlagDeleteMarker != 0 {
		return [4]uint32{pos, 0, 0, flags}, nil, nil
	}
	if f.Mask != 0 || f.Masks != nil {
		flags |= FlagCompress
	}
	encrypted := flags&FlagEncrypted != 0

	var key uint32
	if encrypted {
		key = FileKey(f.Name, pos, size, flags)
	}

	var stored []byte
	switch {
	case f.Raw != nil:
		stored = append([]byte(nil), f.Raw...)
		if encrypted {
			stored = encrypt(stored, key)
		}

	case flags&FlagSingleUnit != 0:
		stored = f.Data
		if flags&FlagCompress != 0 {
			var err error
			if stored, err = compressSector(f.Data, f.mask(0)); err != nil {
				return [4]uint32{}, nil, err
			}
		}
		if encrypted {
			stored = encrypt(stored, key)
		}

	case flags&FlagCompress != 0:
		n := (size + sectorSize - 1) / sectorSize
		numOffsets := n + 1
		if flags&FlagSectorCRC != 0 {
			numOffsets++
		}
		offsets := make([]uint32, 0, numOffsets)
		sums := make([]uint32, 0, n)
		var sectors bytes.Buffer
		for i := uint32(0); i < n; i++ {
			chunk := f.Data[i*sectorSize : min((i+1)*sectorSize, size)]
			sector, err := compressSector(chunk, f.mask(int(i)))
			if err != nil {
				return [4]uint32{}, nil, err
			}
			sums = append(sums, adler32Zero(sector))
			if encrypted {
				sector = encrypt(sector, key+i)
			}
			offsets = append(offsets, numOffsets*4+uint32(sectors.Len()))
			sectors.Write(sector)
		}
		offsets = append(offsets, numOffsets*4+uint32(sectors.Len()))
		if flags&FlagSectorCRC != 0 {
			if f.BadChecksum && len(sums) > 0 {
				sums[0] ^= 0x00010001
			}
			sectors.Write(words(sums))
			offsets = append(offsets, numOffsets*4+uint32(sectors.Len()))
		}
		table := words(offsets)
		if encrypted {
			table = encrypt(table, key-1)
		}
		stored = append(table, sectors.Bytes()...)

	default:
		if !encrypted {
			stored = f.Data
			break
		}
		for i, start := uint32(0), uint32(0); start < size; i, start = i+1, start+sectorSize {
			stored = append(stored, encrypt(f.Data[start:min(start+sectorSize, size)], key+i)...)
		}
	}

	return [4]uint32{pos, uint32(len(stored)), size, flags}, stored, nil
}

func (f File) mask(sector int) byte {
	if f.Masks != nil {
		if sector < len(f.Masks) {
			return f.Masks[sector]
		}
		return 0
	}
	return f.Mask
}

// compressSector applies the stages named by mask and prefixes the mask
// byte. The sector is stored as is when compression does not make it smaller.
func compressSector(data []byte, mask byte) ([]byte, error) {
	if mask == 0 {
		return data, nil
	}
	if mask&^(MaskZlib|MaskBzip2) != 0 {
		return nil, fmt.Errorf("cannot encode mask 0x%02X", mask)
	}

	out := data
	if mask&MaskZlib != 0 {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(out); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		out = buf.Bytes()
	}
	if mask&MaskBzip2 != 0 {
		var buf bytes.Buffer
		w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(out); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		out = buf.Bytes()
	}

	if 1+len(out) >= len(data) {
		return data, nil
	}
	return append([]byte{mask}, out...), nil
}

func hashTable(files []File, size uint32) ([][4]uint32, error) {
	slots := make([][4]uint32, size)
	for i := range slots {
		slots[i] = [4]uint32{hashEmpty, hashEmpty, hashEmpty, hashEmpty}
	}

	for i, f := range files {
		home := Hash(f.Name, 0) % size
		if f.Tombstone && slots[home][3] == hashEmpty {
			slots[home][3] = hashDeleted
		}
		placed := false
		for j := uint32(0); j < size; j++ {
			idx := (home + j) % size
			if slots[idx][3] != hashEmpty {
				continue
			}
			slots[idx] = [4]uint32{
				Hash(f.Name, 1),
				Hash(f.Name, 2),
				uint32(f.Locale) | uint32(f.Platform)<<16,
				uint32(i),
			}
			placed = true
			break
		}
		if !placed {
			return nil, fmt.Errorf("hash table of %d slots is full", size)
		}
	}
	return slots, nil
}

// attributes encodes CRC32 and MD5 values for files, in block order.
// The entry of the attributes file itself is left zero.
func attributes(files []File) []byte {
	count := len(files) + 1
	out := binary.LittleEndian.AppendUint32(nil, 100)
	out = binary.LittleEndian.AppendUint32(out, 0x1|0x4)
	for i := 0; i < count; i++ {
		var sum uint32
		if i < len(files) && files[i].Flags&FlagDeleteMarker == 0 {
			sum = crc32.ChecksumIEEE(files[i].Data)
		}
		out = binary.LittleEndian.AppendUint32(out, sum)
	}
	for i := 0; i < count; i++ {
		var sum [md5.Size]byte
		if i < len(files) && files[i].Flags&FlagDeleteMarker == 0 {
			sum = md5.Sum(files[i].Data)
		}
		out = append(out, sum[:]...)
	}
	return out
}

func flatten(entries [][4]uint32) []uint32 {
	out := make([]uint32, 0, 4*len(entries))
	for _, e := range entries {
		out = append(out, e[:]...)
	}
	return out
}

func words(ws []uint32) []byte {
	out := make([]byte, 0, 4*len(ws))
	for _, w := range ws {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func adler32Zero(data []byte) uint32 {
	var a, b uint32
	for _, v := range data {
		a = (a + uint32(v)) % 65521
		b = (b + a) % 65521
	}
	return b<<16 | a
}
