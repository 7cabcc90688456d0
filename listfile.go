// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"errors"
	"iter"
	"strings"
)

// Names of the special files
const (
	listFileName   = "(listfile)"
	attributesName = "(attributes)"
	signatureName  = "(signature)"
)

// Files yields the names recorded in the archive's (listfile), in order,
// skipping duplicates. It yields nothing when the archive has no readable
// listfile. The listfile is read once per iteration.
func (a *Archive) Files() iter.Seq[string] {
	return func(yield func(string) bool) {
		data, err := a.ReadFile(listFileName)
		if err != nil {
			if !errors.Is(err, ErrFileNotFound) {
				a.logger.Warn("listfile unreadable", "err", err)
			}
			return
		}

		seen := make(map[string]struct{})
		for _, name := range splitListFile(data) {
			key := foldName(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if !yield(name) {
				return
			}
		}
	}
}

// ListFiles returns the contents of the (listfile), or an empty slice.
func (a *Archive) ListFiles() []string {
	files := []string{}
	for name := range a.Files() {
		files = append(files, name)
	}
	return files
}

// splitListFile splits listfile content on line breaks and semicolons.
func splitListFile(data []byte) []string {
	fields := bytes.FieldsFunc(data, func(r rune) bool {
		return r == '\r' || r == '\n' || r == ';' || r == 0
	})

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(string(f))
		if name != "" {
			names = append(names, normalizePath(name))
		}
	}
	return names
}
