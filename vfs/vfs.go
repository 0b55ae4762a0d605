// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package vfs defines the portable filesystem contract that the disk and
// memory backings (packages diskfs and memfs) implement: opening, reading,
// writing, listing, renaming and deleting files and directories, plus a
// factory for the batched durability primitive implemented by package
// fsync.
package vfs

import (
	"context"
	"io"

	"github.com/khonsulabs/file-manager/pathid"
)

// File is a handle opened against a path. Positioned reads and writes use
// a per-handle cursor; Len and SetLen act on the underlying storage, not
// the cursor.
//
// Implementations must be safe for concurrent use by multiple goroutines,
// except where documented otherwise (concurrent use of a single memfs
// handle is unspecified, see memfs.File).
type File interface {
	io.Reader
	io.Writer
	io.Seeker

	// Path returns the PathId this handle was opened against.
	Path() pathid.PathId

	// Len reports the file's current byte length.
	Len(ctx context.Context) (int64, error)

	// SetLen truncates or extends the file to length. New bytes are
	// zero-filled. If the cursor sits past the new length, it is moved to
	// the new end.
	SetLen(ctx context.Context, length int64) error

	// SyncData flushes the file's byte contents to durable storage.
	SyncData(ctx context.Context) error

	// SyncAll flushes contents and metadata to durable storage.
	SyncAll(ctx context.Context) error

	// TryClone returns an independent handle aliasing the same underlying
	// file. The clone has its own cursor but shares the underlying bytes.
	TryClone(ctx context.Context) (File, error)

	// Close releases any resources held by the handle.
	Close(ctx context.Context) error
}

// Batch is the durability-batch handle a FileManager hands out; defined
// here (rather than imported from package fsync) so this package has no
// dependency on the concrete durability implementation. Package fsync's
// *Batch implements it.
type Batch interface {
	// QueueFsyncData schedules a data-only durability sync of f.
	QueueFsyncData(f File) error
	// QueueFsyncAll schedules a contents-and-metadata durability sync of f.
	QueueFsyncAll(f File) error
	// WaitAll blocks until every operation queued on this batch has been
	// acknowledged by a worker. An operation whose sync fails is never
	// acknowledged, so WaitAll does not return for it; the failure is
	// reported by Shutdown instead. WaitAll consumes the batch; it must be
	// called exactly once.
	WaitAll(ctx context.Context) error
}

// FileManager is a backing for the filesystem contract. Values must be
// cheap to copy and safe for concurrent use; copies of a FileManager
// observe the same files and share the same durability worker pool.
type FileManager interface {
	// Open opens path per options. If the file exists, it is opened with
	// the requested intent. Otherwise, if options.Create is set and
	// path's parent directory exists, the file is created and opened.
	// Otherwise Open fails with a NotFound-kind error.
	Open(ctx context.Context, path pathid.PathId, options OpenOptions) (File, error)

	// Exists reports whether path names a known file or directory. It is
	// best-effort: a backing that cannot answer returns false rather than
	// an error.
	Exists(ctx context.Context, path pathid.PathId) bool

	// CreateDirAll creates path and any missing ancestors as empty
	// directories. Succeeds if path already exists as a directory; fails
	// with AlreadyExists-kind if path or an ancestor exists as a
	// non-directory.
	CreateDirAll(ctx context.Context, path pathid.PathId) error

	// RemoveDirAll removes path and everything beneath it.
	RemoveDirAll(ctx context.Context, path pathid.PathId) error

	// RemoveFile removes a single non-directory entry. Fails with
	// NotFound-kind if absent, Unsupported-kind if path is the root.
	RemoveFile(ctx context.Context, path pathid.PathId) error

	// Rename atomically relinks the entry at from to to. Fails with
	// NotFound-kind if from does not exist.
	Rename(ctx context.Context, from, to pathid.PathId) error

	// List returns the (unordered) children of the directory at path.
	// Fails with NotFound-kind if nothing exists at path.
	List(ctx context.Context, path pathid.PathId) ([]pathid.PathId, error)

	// NewFsyncBatch returns a fresh, empty durability batch bound to this
	// manager. Fails with Shutdown-kind after Shutdown has been called.
	NewFsyncBatch(ctx context.Context) (Batch, error)

	// Shutdown brings the durability subsystem to its terminal state.
	Shutdown(ctx context.Context) error
}
