// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package mpq provides pure Go read access to MPQ (Mo'PaQ) archives.

MPQ is an archive format created by Blizzard Entertainment, used in games like
Diablo, StarCraft and Warcraft III to store models, textures and configuration.
The package decodes the hash and block tables, decrypts files and sector
tables, and reverses every per-sector compression stage the classic format
uses: Huffman, zlib, PKWare implode, bzip2 and ADPCM.

# Basic Usage

Opening an archive held in memory:

	archive, err := mpq.Open(buf)
	if err != nil {
		log.Fatal(err)
	}

	data, err := archive.ReadFile("Units\\Human\\Footman\\Footman.mdx")
	if err != nil {
		log.Fatal(err)
	}

Opening an archive on disk maps it into memory:

	archive, err := mpq.OpenFile("war3.mpq", mpq.WithCache(256))
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	for name := range archive.Files() {
		fmt.Println(name)
	}

Failures can be classified with errors.Is against [ErrInvalidFormat],
[ErrUnsupportedVersion], [ErrOutOfBounds], [ErrFileNotFound],
[ErrUnsupportedCompression] and [ErrCorruptData].

# Path Conventions

MPQ archives use backslash (\) as the path separator. This package automatically
converts forward slashes to backslashes, so both formats work:

	archive.ReadFile("Data\\SubDir\\file.txt")  // Native MPQ format
	archive.ReadFile("Data/SubDir/file.txt")    // Also works

Names are matched case-insensitively.

# Concurrency

An Archive never changes after it is opened. ReadFile and the other lookup
methods may be called from any number of goroutines; every call returns a
buffer owned by the caller.

# Limitations

  - No support for writing archives
  - No support for MPQ format V3/V4 (Cataclysm+)
  - No support for sparse and LZMA compression
  - Huffman streams must use weight table 0
  - Signatures are read but not verified
*/
package mpq
