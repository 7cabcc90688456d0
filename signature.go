// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	weakSignatureFileSize = 72 // 8 reserved bytes + 64 byte RSA signature
	weakSignatureSize     = 64

	strongSignatureMagic = 0x5349474E // "NGIS"
	strongSignatureSize  = 256
)

// WeakSignature returns the 512-bit signature stored in the (signature) file,
// or nil when the archive is not signed. The signature is not verified.
func (a *Archive) WeakSignature() ([]byte, error) {
	data, err := a.ReadFile(signatureName)
	if errors.Is(err, ErrFileNotFound) {
		return nil, nil // Signature is optional
	}
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}

	if len(data) != weakSignatureFileSize {
		return nil, fmt.Errorf("%w: signature file of %d bytes, want %d", ErrCorruptData, len(data), weakSignatureFileSize)
	}

	signature := make([]byte, weakSignatureSize)
	copy(signature, data[8:])
	return signature, nil
}

// StrongSignature returns the 2048-bit signature that follows the archive
// data, or nil when there is none. The signature is not verified.
func (a *Archive) StrongSignature() ([]byte, error) {
	end := a.offset + int64(a.header.ArchiveSize)
	if a.header.ArchiveSize == 0 || end+4+strongSignatureSize > a.src.size {
		return nil, nil
	}

	data, err := a.src.read(end, 4+strongSignatureSize)
	if err != nil {
		return nil, fmt.Errorf("read strong signature: %w", err)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != strongSignatureMagic {
		return nil, nil
	}
	return data[4:], nil
}
