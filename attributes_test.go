// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
	"time"

	"github.com/nazarpunk/go-mpq/internal/mpqtest"
)

func TestAttributes(t *testing.T) {
	a := openBuilt(t, mpqtest.Builder{
		Files: []mpqtest.File{
			{Name: "war3map.j", Data: []byte("function main takes nothing returns nothing")},
			{Name: "war3map.w3e", Data: payload(3000), Mask: mpqtest.MaskZlib, Flags: mpqtest.FlagEncrypted},
		},
		Listfile:   true,
		Attributes: true,
	})

	at, err := a.Attributes()
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if at.Flags != attributesFlagCRC32|attributesFlagMD5 {
		t.Errorf("Flags = 0x%X", at.Flags)
	}
	if len(at.CRC32) != a.BlockTableSize() || len(at.MD5) != a.BlockTableSize() {
		t.Fatalf("tables of %d/%d entries, want %d", len(at.CRC32), len(at.MD5), a.BlockTableSize())
	}
	if want := crc32.ChecksumIEEE(payload(3000)); at.CRC32[1] != want {
		t.Errorf("CRC32[1] = 0x%08X, want 0x%08X", at.CRC32[1], want)
	}
	if at.FileTime != nil || at.PatchBit != nil {
		t.Error("unrecorded tables are not nil")
	}

	for _, name := range []string{"war3map.j", "war3map.w3e", "(listfile)", "(attributes)"} {
		if err := a.VerifyFile(name); err != nil {
			t.Errorf("VerifyFile(%s): %v", name, err)
		}
	}
}

func TestVerifyFileMismatch(t *testing.T) {
	a := openBuilt(t, mpqtest.Builder{
		Files:      []mpqtest.File{{Name: "a.txt", Data: []byte("original")}},
		Attributes: true,
	})

	at, err := a.Attributes()
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}

	at.CRC32[0] ^= 1
	if err := a.verifyWith(at, "a.txt"); !errors.Is(err, ErrCorruptData) {
		t.Errorf("CRC32 mismatch error = %v, want ErrCorruptData", err)
	}

	at.CRC32[0] = 0
	at.MD5[0][0] ^= 1
	if err := a.verifyWith(at, "a.txt"); !errors.Is(err, ErrCorruptData) {
		t.Errorf("MD5 mismatch error = %v, want ErrCorruptData", err)
	}

	at.MD5[0] = [md5.Size]byte{}
	if err := a.verifyWith(at, "a.txt"); err != nil {
		t.Errorf("unrecorded values: %v", err)
	}
}

func TestVerifyFileWithoutAttributes(t *testing.T) {
	a := openBuilt(t, helloArchive())
	if err := a.VerifyFile("test.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("VerifyFile error = %v, want ErrFileNotFound", err)
	}
}

func TestParseAttributes(t *testing.T) {
	data := binary.LittleEndian.AppendUint32(nil, attributesVersion)
	data = binary.LittleEndian.AppendUint32(data, attributesFlagFileTime|attributesFlagPatchBit)
	// 2000-01-01 00:00:00 UTC as FILETIME
	data = binary.LittleEndian.AppendUint64(data, 125911584000000000)
	data = binary.LittleEndian.AppendUint64(data, 0)
	data = binary.LittleEndian.AppendUint64(data, 0)
	data = append(data, 0b101)

	at, err := parseAttributes(data, 3)
	if err != nil {
		t.Fatalf("parseAttributes: %v", err)
	}

	mod, ok := at.ModTime(0)
	if !ok || !mod.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ModTime(0) = %v, %v", mod, ok)
	}
	if _, ok := at.ModTime(1); ok {
		t.Error("ModTime(1) reported a zero time")
	}
	if _, ok := at.ModTime(5); ok {
		t.Error("ModTime(5) reported a time out of range")
	}
	if want := []bool{true, false, true}; len(at.PatchBit) != 3 || at.PatchBit[0] != want[0] || at.PatchBit[1] != want[1] || at.PatchBit[2] != want[2] {
		t.Errorf("PatchBit = %v, want %v", at.PatchBit, want)
	}

	if _, err := parseAttributes(data[:20], 3); !errors.Is(err, ErrCorruptData) {
		t.Errorf("truncated error = %v, want ErrCorruptData", err)
	}
	bad := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(bad, 99)
	if _, err := parseAttributes(bad, 3); !errors.Is(err, ErrCorruptData) {
		t.Errorf("version error = %v, want ErrCorruptData", err)
	}
}
