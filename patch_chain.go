// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"errors"
	"fmt"
)

// PatchChain represents a prioritized list of MPQ archives.
// The last archive has the highest priority. A deletion marker in a
// higher-priority archive hides the file in every archive below it.
type PatchChain struct {
	archives []*Archive
	owned    bool
}

// NewPatchChain builds a chain from already opened archives, lowest priority first.
// Closing the chain does not close them.
func NewPatchChain(archives ...*Archive) *PatchChain {
	return &PatchChain{archives: archives}
}

// OpenPatchChain opens multiple MPQ archives in order of increasing priority.
func OpenPatchChain(paths []string, opts ...Option) (*PatchChain, error) {
	archives := make([]*Archive, 0, len(paths))

	for _, path := range paths {
		archive, err := OpenFile(path, opts...)
		if err != nil {
			for _, opened := range archives {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open archive %s: %w", path, err)
		}
		archives = append(archives, archive)
	}

	return &PatchChain{archives: archives, owned: true}, nil
}

// Close closes all archives in the patch chain that it opened.
func (p *PatchChain) Close() error {
	if !p.owned {
		return nil
	}
	var firstErr error
	for _, archive := range p.archives {
		if err := archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolve finds the highest-priority archive holding name.
func (p *PatchChain) resolve(name string) (*Archive, *blockTableEntry, error) {
	name = normalizePath(name)
	for i := len(p.archives) - 1; i >= 0; i-- {
		archive := p.archives[i]
		_, block, err := archive.findEntry(name, LocaleNeutral, 0)
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if block.Flags&fileDeleteMarker != 0 {
			return nil, nil, fmt.Errorf("%w: %s marked for deletion in patch", ErrFileNotFound, name)
		}
		return archive, block, nil
	}
	return nil, nil, fmt.Errorf("%w: %s not in patch chain", ErrFileNotFound, name)
}

// HasFile returns true if any archive contains the specified file.
// Respects deletion markers in higher-priority archives.
func (p *PatchChain) HasFile(name string) bool {
	_, _, err := p.resolve(name)
	return err == nil
}

// ReadFile returns the highest-priority version of a file.
func (p *PatchChain) ReadFile(name string) ([]byte, error) {
	archive, block, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	if block.Flags&filePatchFile != 0 {
		return nil, fmt.Errorf("%w: %s", ErrPatchFile, name)
	}
	return archive.ReadFile(name)
}

// HasPatchFile checks if a file is marked as a patch file in any archive.
func (p *PatchChain) HasPatchFile(name string) bool {
	name = normalizePath(name)
	for i := len(p.archives) - 1; i >= 0; i-- {
		_, block, err := p.archives[i].findEntry(name, LocaleNeutral, 0)
		if err == nil && block.Flags&filePatchFile != 0 {
			return true
		}
	}
	return false
}

// ListFiles returns the union of listfiles across the chain, without files
// that a higher-priority archive deletes.
func (p *PatchChain) ListFiles() []string {
	seen := make(map[string]struct{})
	result := []string{}
	for i := len(p.archives) - 1; i >= 0; i-- {
		for file := range p.archives[i].Files() {
			key := foldName(file)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if p.HasFile(file) {
				result = append(result, file)
			}
		}
	}
	return result
}

// Len returns the number of archives in the chain.
func (p *PatchChain) Len() int {
	return len(p.archives)
}
