// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package diskfs implements the filesystem contract defined by package vfs
// as a thin adapter over the host operating system, the same way the
// teacher's file.localFile delegates straight to package os. Unlike that
// teacher implementation, it does not stage writes through a temp file and
// rename on close: the contract this package implements calls for direct
// delegation, so that behaviour is left out (see the design notes for why).
package diskfs

import (
	"context"
	goerrors "errors"
	"os"
	"syscall"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/fsync"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
)

// Manager is the on-disk FileManager. Its only owned state is a handle to
// the shared durability subsystem; every other operation is a direct call
// into package os. The zero value is not usable; construct one with
// NewManager.
type Manager struct {
	durability *fsync.Manager
}

var _ vfs.FileManager = Manager{}

// NewManager returns a disk-backed FileManager whose durability batches run
// on durability. Passing a shared *fsync.Manager across multiple Managers
// (disk or memory) makes them share one worker pool.
func NewManager(durability *fsync.Manager) Manager {
	return Manager{durability: durability}
}

// Open implements vfs.FileManager.
func (m Manager) Open(ctx context.Context, path pathid.PathId, options vfs.OpenOptions) (vfs.File, error) {
	flag := 0
	switch {
	case options.Read && options.Write:
		flag = os.O_RDWR
	case options.Write:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if options.Create {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path.String(), flag, 0666)
	if err != nil {
		return nil, translate(err)
	}
	return &File{f: f, path: path, flag: flag}, nil
}

// Exists implements vfs.FileManager.
func (m Manager) Exists(ctx context.Context, path pathid.PathId) bool {
	_, err := os.Stat(path.String())
	return err == nil
}

// CreateDirAll implements vfs.FileManager.
func (m Manager) CreateDirAll(ctx context.Context, path pathid.PathId) error {
	if err := os.MkdirAll(path.String(), 0777); err != nil {
		if info, statErr := os.Stat(path.String()); statErr == nil && !info.IsDir() {
			return errors.E(errors.AlreadyExists, "create dir all "+path.String())
		}
		if goerrors.Is(err, syscall.ENOTDIR) {
			// An ancestor of path exists as a non-directory.
			return errors.E(errors.AlreadyExists, "create dir all "+path.String(), err)
		}
		return translate(err)
	}
	return nil
}

// RemoveDirAll implements vfs.FileManager.
func (m Manager) RemoveDirAll(ctx context.Context, path pathid.PathId) error {
	return translate(os.RemoveAll(path.String()))
}

// RemoveFile implements vfs.FileManager.
func (m Manager) RemoveFile(ctx context.Context, path pathid.PathId) error {
	if _, ok := path.Parent(); !ok {
		return errors.E(errors.Unsupported, "remove file: cannot remove root")
	}
	return translate(os.Remove(path.String()))
}

// Rename implements vfs.FileManager.
func (m Manager) Rename(ctx context.Context, from, to pathid.PathId) error {
	return translate(os.Rename(from.String(), to.String()))
}

// List implements vfs.FileManager.
func (m Manager) List(ctx context.Context, path pathid.PathId) ([]pathid.PathId, error) {
	entries, err := os.ReadDir(path.String())
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]pathid.PathId, len(entries))
	for i, e := range entries {
		ids[i] = pathid.Join(path, e.Name())
	}
	return ids, nil
}

// NewFsyncBatch implements vfs.FileManager.
func (m Manager) NewFsyncBatch(ctx context.Context) (vfs.Batch, error) {
	return m.durability.NewBatch(ctx)
}

// Shutdown implements vfs.FileManager.
func (m Manager) Shutdown(ctx context.Context) error {
	return m.durability.Shutdown(ctx)
}

// translate maps the host's fs.ErrNotExist/fs.ErrExist sentinels to the
// Kind taxonomy shared across both backings, and otherwise passes the
// error through wrapped as Kind Other so it still round-trips through
// errors.ToIOError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return errors.E(errors.NotFound, err)
	case os.IsExist(err):
		return errors.E(errors.AlreadyExists, err)
	default:
		return errors.E(errors.Other, err)
	}
}
