// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"time"
)

// FS returns a read-only file system view of the archive. Paths use
// forward slashes; they are converted to archive paths on lookup.
// Directories are not modelled, so the root cannot be listed.
func (a *Archive) FS() fs.FS {
	return archiveFS{a}
}

type archiveFS struct {
	a *Archive
}

var (
	_ fs.ReadFileFS = archiveFS{}
	_ fs.StatFS     = archiveFS{}
)

func (f archiveFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	info, err := f.Stat(name)
	if err != nil {
		return nil, err
	}
	data, err := f.a.ReadFile(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &archiveFile{info: info.(fileInfo), Reader: bytes.NewReader(data)}, nil
}

func (f archiveFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	data, err := f.a.ReadFile(name)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

func (f archiveFS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	fi, err := f.a.Stat(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return fileInfo{name: path.Base(name), fi: fi}, nil
}

// fileInfo adapts FileInfo to fs.FileInfo.
type fileInfo struct {
	name string
	fi   FileInfo
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return int64(i.fi.Size) }
func (i fileInfo) Mode() fs.FileMode  { return 0444 }
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return i.fi }

type archiveFile struct {
	info fileInfo
	*bytes.Reader
}

var _ io.ReaderAt = (*archiveFile)(nil)

func (f *archiveFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *archiveFile) Close() error               { return nil }
