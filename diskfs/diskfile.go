// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package diskfs

import (
	"context"
	"io"
	"os"

	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
)

// File is the disk-backed vfs.File. It is a direct wrapper around *os.File;
// every operation other than TryClone and SetLen is a one-line delegation. flag is
// remembered so TryClone can reopen the same path with the same access
// mode.
type File struct {
	f    *os.File
	path pathid.PathId
	flag int
}

var _ vfs.File = (*File)(nil)

func (f *File) Read(p []byte) (int, error)  { return f.f.Read(p) }
func (f *File) Write(p []byte) (int, error) { return f.f.Write(p) }
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.f.Seek(offset, whence)
}

// Path implements vfs.File.
func (f *File) Path() pathid.PathId { return f.path }

// Len implements vfs.File.
func (f *File) Len(ctx context.Context) (int64, error) {
	info, err := f.f.Stat()
	if err != nil {
		return 0, translate(err)
	}
	return info.Size(), nil
}

// SetLen implements vfs.File. The host truncate leaves the offset alone, so
// a cursor past the new length is moved back to the new end afterwards.
func (f *File) SetLen(ctx context.Context, length int64) error {
	if err := f.f.Truncate(length); err != nil {
		return translate(err)
	}
	pos, err := f.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return translate(err)
	}
	if pos > length {
		if _, err := f.f.Seek(length, io.SeekStart); err != nil {
			return translate(err)
		}
	}
	return nil
}

// SyncData implements vfs.File. The standard library exposes no
// fdatasync-equivalent distinct from a full fsync, so this collapses to
// the same syscall as SyncAll; the host platform still treats it as a
// data-durability barrier.
func (f *File) SyncData(ctx context.Context) error {
	return translate(f.f.Sync())
}

// SyncAll implements vfs.File.
func (f *File) SyncAll(ctx context.Context) error {
	return translate(f.f.Sync())
}

// TryClone implements vfs.File. A raw fd duplicate (dup(2)) would share the
// original's open-file-description offset, which is the opposite of what
// the contract asks for — an independent cursor over the same bytes — so
// the clone instead reopens the same path with the same access mode,
// giving it its own open file description and its own offset.
func (f *File) TryClone(ctx context.Context) (vfs.File, error) {
	clone, err := os.OpenFile(f.f.Name(), f.flag, 0666)
	if err != nil {
		return nil, translate(err)
	}
	return &File{f: clone, path: f.path, flag: f.flag}, nil
}

// Close implements vfs.File.
func (f *File) Close(ctx context.Context) error {
	return translate(f.f.Close())
}
