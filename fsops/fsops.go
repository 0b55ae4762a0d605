// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fsops provides bulk convenience helpers built on top of package
// vfs, the same way the teacher's file.RemoveAll and file.ReadFile/WriteFile
// sit on top of the core file.Implementation contract. Where that fan-out
// is non-trivial (more than one path touched per call), these helpers use
// golang.org/x/sync/errgroup, the teacher's own choice for the same job.
package fsops

import (
	"context"
	"runtime"
	"sync"

	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
	"golang.org/x/sync/errgroup"
)

// SyncManyData opens each of paths read-only and queues a data-only
// durability sync for it on batch, fanning the opens out across a bounded
// errgroup.Group. Unlike the Rust original, where each opened file's Drop
// closes it once nothing references it any longer, a Go *os.File has no such
// hook, so SyncManyData owns the full lifecycle of every handle it opens: it
// waits for batch to drain and then closes every handle itself before
// returning, rather than leaving that to the caller.
func SyncManyData(ctx context.Context, m vfs.FileManager, batch vfs.Batch, paths []pathid.PathId) error {
	handles := make([]vfs.File, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			f, err := m.Open(gctx, path, vfs.OpenOptions{Read: true})
			if err != nil {
				return err
			}
			mu.Lock()
			handles[i] = f
			mu.Unlock()
			return batch.QueueFsyncData(f)
		})
	}
	openErr := g.Wait()

	// Wait before closing: a handle must not be closed while a worker may
	// still be calling SyncData on it.
	waitErr := batch.WaitAll(ctx)

	var closeErr error
	for _, f := range handles {
		if f == nil {
			continue
		}
		if err := f.Close(ctx); err != nil && closeErr == nil {
			closeErr = err
		}
	}

	switch {
	case openErr != nil:
		return openErr
	case waitErr != nil:
		return waitErr
	default:
		return closeErr
	}
}

// RemoveAllPaths removes every path in paths, fanning the removals out
// across a bounded errgroup.Group and returning the first error
// encountered. It does not stop early on the first failure: every path is
// still attempted.
func RemoveAllPaths(ctx context.Context, m vfs.FileManager, paths []pathid.PathId) error {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		path := path
		g.Go(func() error { return m.RemoveFile(ctx, path) })
	}
	return g.Wait()
}
