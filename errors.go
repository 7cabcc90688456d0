// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"errors"
	"fmt"
	"io/fs"
)

// Errors returned by the reader. They are wrapped with context, so callers
// should compare with errors.Is.
var (
	// ErrInvalidFormat is returned when no MPQ header signature is found.
	ErrInvalidFormat = errors.New("mpq: invalid format")

	// ErrUnsupportedVersion is returned for header versions the reader does not model.
	ErrUnsupportedVersion = errors.New("mpq: unsupported format version")

	// ErrOutOfBounds is returned when a table or sector range exceeds the archive.
	ErrOutOfBounds = errors.New("mpq: range out of bounds")

	// ErrFileNotFound is returned when a name is absent, deleted or has no block.
	// It also matches fs.ErrNotExist.
	ErrFileNotFound = fmt.Errorf("mpq: file not found: %w", fs.ErrNotExist)

	// ErrUnsupportedCompression is returned when a sector uses an unknown codec bit.
	ErrUnsupportedCompression = errors.New("mpq: unsupported compression")

	// ErrCorruptData is returned when decoded content fails a structural check.
	ErrCorruptData = errors.New("mpq: corrupt data")

	// ErrPatchFile is returned by a patch chain that meets an incremental patch file.
	ErrPatchFile = errors.New("mpq: incremental patch files are not supported")
)
