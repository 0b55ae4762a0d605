// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package memfs

import (
	"context"
	"io"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
)

// File is the in-memory vfs.File. Handles opened against the same path
// share the same sharedBuffer but track independent cursors; concurrent
// use of a single handle by multiple goroutines is unspecified, the same
// way a single *os.File's cursor races under concurrent callers.
type File struct {
	path  pathid.PathId
	isDir bool
	buf   *sharedBuffer // nil when isDir
	pos   int64
}

var _ vfs.File = (*File)(nil)

// Path implements vfs.File.
func (f *File) Path() pathid.PathId { return f.path }

func errUnsupportedOnDir(op string) error {
	return errors.E(errors.Unsupported, op+": is a directory")
}

// Read implements vfs.File.
func (f *File) Read(p []byte) (int, error) {
	if f.isDir {
		return 0, errUnsupportedOnDir("read")
	}
	f.buf.mu.RLock()
	defer f.buf.mu.RUnlock()

	available := int64(len(f.buf.data)) - f.pos
	if available <= 0 {
		return 0, io.EOF
	}
	n := copy(p, f.buf.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write implements vfs.File. It follows a deliberate short-write contract
// against the cursor p and length L: p > L resizes (zero-filling) and
// appends the whole input; p == L appends the whole input; p < L
// overwrites in place up to min(L-p, len(input)) bytes and stops there,
// leaving the remainder for a subsequent call.
func (f *File) Write(p []byte) (int, error) {
	if f.isDir {
		return 0, errUnsupportedOnDir("write")
	}
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()

	l := int64(len(f.buf.data))
	switch {
	case f.pos > l:
		grown := make([]byte, f.pos)
		copy(grown, f.buf.data)
		f.buf.data = append(grown, p...)
		f.pos = int64(len(f.buf.data))
		return len(p), nil
	case f.pos == l:
		f.buf.data = append(f.buf.data, p...)
		f.pos = int64(len(f.buf.data))
		return len(p), nil
	default:
		room := l - f.pos
		n := int64(len(p))
		if n > room {
			n = room
		}
		copy(f.buf.data[f.pos:f.pos+n], p[:n])
		f.pos += n
		return int(n), nil
	}
}

// Seek implements vfs.File. The most-negative relative offset, and any
// offset that would otherwise put the cursor before the start of the
// file, clamps to zero rather than underflowing.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.isDir {
		return 0, errUnsupportedOnDir("seek")
	}
	f.buf.mu.RLock()
	length := int64(len(f.buf.data))
	f.buf.mu.RUnlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekEnd:
		newPos = length + offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	default:
		return 0, errors.E(errors.Unsupported, "seek: invalid whence")
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

// Len implements vfs.File.
func (f *File) Len(ctx context.Context) (int64, error) {
	if f.isDir {
		return 0, nil
	}
	f.buf.mu.RLock()
	defer f.buf.mu.RUnlock()
	return int64(len(f.buf.data)), nil
}

// SetLen implements vfs.File.
func (f *File) SetLen(ctx context.Context, length int64) error {
	if f.isDir {
		return errUnsupportedOnDir("set_len")
	}
	if length < 0 {
		return errors.E(errors.Unsupported, "set_len: negative length")
	}
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()

	if length <= int64(len(f.buf.data)) {
		f.buf.data = f.buf.data[:length]
	} else {
		grown := make([]byte, length)
		copy(grown, f.buf.data)
		f.buf.data = grown
	}
	if f.pos > length {
		f.pos = length
	}
	return nil
}

// SyncData implements vfs.File. The in-memory backing has nothing to
// flush, so this always succeeds.
func (f *File) SyncData(ctx context.Context) error { return nil }

// SyncAll implements vfs.File.
func (f *File) SyncAll(ctx context.Context) error { return nil }

// TryClone implements vfs.File: the clone shares the same sharedBuffer but
// starts with its own cursor at zero.
func (f *File) TryClone(ctx context.Context) (vfs.File, error) {
	return &File{path: f.path, isDir: f.isDir, buf: f.buf}, nil
}

// Close implements vfs.File. There is nothing to release.
func (f *File) Close(ctx context.Context) error { return nil }
