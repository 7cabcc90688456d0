// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compression type constants
const (
	compressionHuffman   = 0x01 // Huffman (used on wave files only)
	compressionZlib      = 0x02 // Zlib compression
	compressionPKWare    = 0x08 // PKWare DCL compression
	compressionBzip2     = 0x10 // BZip2 compression
	compressionSparse    = 0x20 // Sparse/RLE compression (SC2+), not supported
	compressionADPCMMono = 0x40 // ADPCM mono audio
	compressionADPCM     = 0x80 // ADPCM stereo audio
)

// codec is one decompression stage, selected by its bit in the sector mask.
type codec struct {
	mask   byte
	name   string
	decode func(data []byte, size int) ([]byte, error)
}

// codecs lists the stages in decompression order, which is the reverse of
// the order they are applied when compressing.
var codecs = []codec{
	{compressionBzip2, "bzip2", decompressBzip2},
	{compressionPKWare, "pkware", explode},
	{compressionZlib, "zlib", decompressZlib},
	{compressionHuffman, "huffman", decompressHuffman},
	{compressionADPCM, "adpcm stereo", func(data []byte, size int) ([]byte, error) {
		return decompressADPCM(data, size, 2)
	}},
	{compressionADPCMMono, "adpcm mono", func(data []byte, size int) ([]byte, error) {
		return decompressADPCM(data, size, 1)
	}},
}

// supportedCompression is the union of all registered codec bits.
var supportedCompression = func() byte {
	var m byte
	for _, c := range codecs {
		m |= c.mask
	}
	return m
}()

// decompressData decompresses a sector whose first byte is the compression mask.
// Every stage named by the mask runs in decompression order, each one
// consuming the previous stage's output.
func decompressData(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty compressed data", ErrCorruptData)
	}

	compressionType := data[0]
	if unknown := compressionType &^ supportedCompression; unknown != 0 {
		return nil, fmt.Errorf("%w: mask 0x%02X has unknown bits 0x%02X", ErrUnsupportedCompression, compressionType, unknown)
	}

	result := data[1:]
	for _, c := range codecs {
		if compressionType&c.mask == 0 {
			continue
		}
		out, err := c.decode(result, uncompressedSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		result = out
	}

	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("%w: mask 0x%02X produced %d bytes, want %d", ErrCorruptData, compressionType, len(result), uncompressedSize)
	}
	return result, nil
}

// decompressZlib decompresses zlib-compressed data
func decompressZlib(data []byte, uncompressedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: create zlib reader: %v", ErrCorruptData, err)
	}
	defer r.Close()

	return readExpected(r, uncompressedSize, "zlib")
}

// decompressBzip2 decompresses bzip2-compressed data
func decompressBzip2(data []byte, uncompressedSize int) ([]byte, error) {
	return readExpected(bzip2.NewReader(bytes.NewReader(data)), uncompressedSize, "bzip2")
}

// readExpected reads up to size bytes from a decompressor.
func readExpected(r io.Reader, size int, name string) ([]byte, error) {
	result := make([]byte, size)
	n, err := io.ReadFull(r, result)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: %s decompress: %v", ErrCorruptData, name, err)
	}
	return result[:n], nil
}
