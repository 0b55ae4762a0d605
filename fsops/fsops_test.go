// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fsops_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/khonsulabs/file-manager/fsops"
	"github.com/khonsulabs/file-manager/fsync"
	"github.com/khonsulabs/file-manager/memfs"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
	"github.com/stretchr/testify/require"
)

// countingFile wraps a vfs.File and records whether it was closed, so tests
// can assert SyncManyData leaves no handle open.
type countingFile struct {
	vfs.File
	closed int32
}

func (f *countingFile) Close(ctx context.Context) error {
	atomic.StoreInt32(&f.closed, 1)
	return f.File.Close(ctx)
}

// trackingManager wraps a vfs.FileManager, handing out countingFiles from
// Open so every handle it creates can be checked for a matching Close.
type trackingManager struct {
	vfs.FileManager
	mu     sync.Mutex
	opened []*countingFile
}

func (m *trackingManager) Open(ctx context.Context, path pathid.PathId, options vfs.OpenOptions) (vfs.File, error) {
	f, err := m.FileManager.Open(ctx, path, options)
	if err != nil {
		return nil, err
	}
	cf := &countingFile{File: f}
	m.mu.Lock()
	m.opened = append(m.opened, cf)
	m.mu.Unlock()
	return cf, nil
}

func (m *trackingManager) snapshot() []*countingFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*countingFile, len(m.opened))
	copy(out, m.opened)
	return out
}

func TestSyncManyDataClosesEveryHandle(t *testing.T) {
	ctx := context.Background()
	durability := fsync.NewManager(4)
	defer durability.Shutdown(ctx)
	base := memfs.NewManager(durability)

	cm := &trackingManager{FileManager: base}

	paths := make([]pathid.PathId, 10)
	for i := range paths {
		paths[i] = pathid.From("/t" + string(rune('a'+i)))
		require.NoError(t, vfs.WriteAll(ctx, cm, paths[i], []byte{byte(i)}))
	}

	batch, err := cm.NewFsyncBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, fsops.SyncManyData(ctx, cm, batch, paths))

	opened := cm.snapshot()
	require.NotEmpty(t, opened)
	for _, f := range opened {
		require.Equal(t, int32(1), atomic.LoadInt32(&f.closed), "handle opened by SyncManyData was never closed")
	}
}

func TestSyncManyData(t *testing.T) {
	ctx := context.Background()
	durability := fsync.NewManager(4)
	defer durability.Shutdown(ctx)
	m := memfs.NewManager(durability)

	paths := make([]pathid.PathId, 10)
	for i := range paths {
		paths[i] = pathid.From("/f" + string(rune('a'+i)))
		require.NoError(t, vfs.WriteAll(ctx, m, paths[i], []byte{byte(i)}))
	}

	batch, err := m.NewFsyncBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, fsops.SyncManyData(ctx, m, batch, paths))
}

func TestRemoveAllPaths(t *testing.T) {
	ctx := context.Background()
	durability := fsync.NewManager(4)
	defer durability.Shutdown(ctx)
	m := memfs.NewManager(durability)

	paths := make([]pathid.PathId, 5)
	for i := range paths {
		paths[i] = pathid.From("/r" + string(rune('a'+i)))
		require.NoError(t, vfs.WriteAll(ctx, m, paths[i], []byte("x")))
	}

	require.NoError(t, fsops.RemoveAllPaths(ctx, m, paths))
	for _, p := range paths {
		require.False(t, m.Exists(ctx, p))
	}
}
