// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/golang-lru/arc/v2"
	"golang.org/x/exp/mmap"
)

// Archive is an opened MPQ archive. Its tables are immutable after opening,
// so all read methods are safe for concurrent use.
type Archive struct {
	src        source
	closer     io.Closer
	offset     int64 // absolute position of the archive header
	header     *archiveHeader
	hashTable  hashTable
	blockTable blockTable
	sectorSize uint32

	cache           *arc.ARCCache[cacheKey, []byte]
	logger          *slog.Logger
	strictChecksums bool
}

type cacheKey struct {
	name     string
	locale   Locale
	platform uint16
}

// FileInfo describes a file stored in an archive.
type FileInfo struct {
	Name           string
	BlockIndex     uint32
	Offset         uint64 // relative to the archive start
	CompressedSize uint32
	Size           uint32
	Flags          uint32
}

// Compressed reports whether the file is compressed or imploded.
func (fi FileInfo) Compressed() bool { return fi.Flags&fileCompressMask != 0 }

// Encrypted reports whether the file content is encrypted.
func (fi FileInfo) Encrypted() bool { return fi.Flags&fileEncrypted != 0 }

// SingleUnit reports whether the file is stored as one sector.
func (fi FileInfo) SingleUnit() bool { return fi.Flags&fileSingleUnit != 0 }

// IsPatch reports whether the file is an incremental patch.
func (fi FileInfo) IsPatch() bool { return fi.Flags&filePatchFile != 0 }

// HasSectorCRC reports whether sector checksums follow the file data.
func (fi FileInfo) HasSectorCRC() bool { return fi.Flags&fileSectorCRC != 0 }

// Open parses an archive held in memory. The buffer must not be modified
// while the archive is in use.
func Open(buf []byte, opts ...Option) (*Archive, error) {
	return NewReader(bytes.NewReader(buf), int64(len(buf)), opts...)
}

// OpenFile memory-maps the file at path and opens it as an archive.
// Close releases the mapping.
func OpenFile(path string, opts ...Option) (*Archive, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	a, err := NewReader(m, int64(m.Len()), opts...)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	a.closer = m
	return a, nil
}

// NewReader opens the archive stored in the first size bytes of r.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	src := source{r: r, size: size}

	offset, err := findHeader(src)
	if err != nil {
		return nil, err
	}

	header, err := parseHeader(src, offset)
	if err != nil {
		return nil, err
	}

	// Read hash table
	hashTableData, err := src.read(offset+int64(header.hashTableOffset64()), uint64(header.HashTableSize)*hashEntrySize)
	if err != nil {
		return nil, fmt.Errorf("read hash table: %w", err)
	}
	hashTable, err := parseHashTable(hashTableData, header.HashTableSize)
	if err != nil {
		return nil, fmt.Errorf("parse hash table: %w", err)
	}

	// Read block table
	blockTableData, err := src.read(offset+int64(header.blockTableOffset64()), uint64(header.BlockTableSize)*blockEntrySize)
	if err != nil {
		return nil, fmt.Errorf("read block table: %w", err)
	}

	// Read extended block table if V2
	var hiBlockTable []byte
	if header.FormatVersion >= formatVersion2 && header.HiBlockTableOffset64 != 0 {
		hiBlockTable, err = src.read(offset+int64(header.HiBlockTableOffset64), uint64(header.BlockTableSize)*2)
		if err != nil {
			return nil, fmt.Errorf("read hi-block table: %w", err)
		}
	}

	a := &Archive{
		src:             src,
		offset:          offset,
		header:          header,
		hashTable:       hashTable,
		blockTable:      parseBlockTable(blockTableData, header.BlockTableSize, hiBlockTable),
		sectorSize:      header.sectorSize(),
		logger:          cfg.logger,
		strictChecksums: cfg.strictChecksums,
	}

	if cfg.cacheSize > 0 {
		a.cache, err = arc.NewARC[cacheKey, []byte](cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create file cache: %w", err)
		}
	}

	a.logger.Debug("opened archive",
		"offset", offset,
		"version", header.FormatVersion,
		"sector_size", a.sectorSize,
		"hash_entries", header.HashTableSize,
		"block_entries", header.BlockTableSize)

	return a, nil
}

// Close releases the memory mapping of archives opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// FormatVersion returns the header format version (0 for V1, 1 for V2).
func (a *Archive) FormatVersion() int { return int(a.header.FormatVersion) }

// SectorSize returns the size in bytes of a full sector.
func (a *Archive) SectorSize() int { return int(a.sectorSize) }

// HashTableSize returns the number of hash table slots.
func (a *Archive) HashTableSize() int { return len(a.hashTable.entries) }

// BlockTableSize returns the number of block table entries.
func (a *Archive) BlockTableSize() int { return len(a.blockTable.entries) }

// Offset returns the position of the archive header within the source.
func (a *Archive) Offset() int64 { return a.offset }

// ReadFile returns the content of the named file in the neutral locale
// (falling back to any locale the file is stored under).
// The path may use backslashes or forward slashes.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	return a.ReadFileLocale(name, LocaleNeutral, 0)
}

// ReadFileLocale returns the content of the named file, preferring the copy
// stored for locale and platform.
func (a *Archive) ReadFileLocale(name string, locale Locale, platform uint16) ([]byte, error) {
	name = normalizePath(name)

	key := cacheKey{name: foldName(name), locale: locale, platform: platform}
	if a.cache != nil {
		if data, ok := a.cache.Get(key); ok {
			return bytes.Clone(data), nil
		}
	}

	_, block, err := a.findFile(name, locale, platform)
	if err != nil {
		return nil, err
	}

	data, err := a.decodeFile(name, block)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if a.cache != nil {
		a.cache.Add(key, bytes.Clone(data))
	}
	return data, nil
}

// Stat returns the block table information of the named file.
func (a *Archive) Stat(name string) (FileInfo, error) {
	name = normalizePath(name)
	index, block, err := a.findFile(name, LocaleNeutral, 0)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:           name,
		BlockIndex:     index,
		Offset:         block.filePos64(),
		CompressedSize: block.CompressedSize,
		Size:           block.FileSize,
		Flags:          block.Flags,
	}, nil
}

// Locales returns every locale the named file is stored under.
func (a *Archive) Locales(name string) []Locale {
	return a.hashTable.locales(normalizePath(name))
}

// HasFile returns true if the archive contains the specified file.
// The path may use backslashes or forward slashes.
func (a *Archive) HasFile(name string) bool {
	_, _, err := a.findFile(normalizePath(name), LocaleNeutral, 0)
	return err == nil
}

// ExtractFile writes the content of the named file to destPath.
func (a *Archive) ExtractFile(name, destPath string) error {
	fileData, err := a.ReadFile(name)
	if err != nil {
		return err
	}

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(destPath, fileData, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// findFile looks up a file in the hash table and returns its block entry.
func (a *Archive) findFile(name string, locale Locale, platform uint16) (uint32, *blockTableEntry, error) {
	index, block, err := a.findEntry(name, locale, platform)
	if err != nil {
		return 0, nil, err
	}
	if block.Flags&fileDeleteMarker != 0 {
		return 0, nil, fmt.Errorf("%w: %s is marked deleted", ErrFileNotFound, name)
	}
	return index, block, nil
}

// findEntry is findFile without hiding deletion markers.
func (a *Archive) findEntry(name string, locale Locale, platform uint16) (uint32, *blockTableEntry, error) {
	index, ok := a.hashTable.lookup(name, locale, platform)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	block, err := a.blockTable.entry(index)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", name, err)
	}
	return index, block, nil
}

// normalizePath converts forward slashes to the archive's backslashes.
func normalizePath(name string) string {
	return strings.ReplaceAll(name, "/", "\\")
}
