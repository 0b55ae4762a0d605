// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package memfs_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/fsync"
	"github.com/khonsulabs/file-manager/internal/vfstest"
	"github.com/khonsulabs/file-manager/memfs"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (memfs.Manager, *fsync.Manager) {
	d := fsync.NewManager(2)
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	return memfs.NewManager(d), d
}

func TestContractSuite(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateDirAll(ctx, pathid.From("/contract")))
	vfstest.All(ctx, t, m, pathid.From("/contract"))
}

func TestRelativePathRejected(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Open(ctx, pathid.From("relative"), vfs.OpenOptions{Read: true})
	require.Error(t, err)
	require.True(t, errors.Is(errors.Unsupported, err))
}

// TestS1CreateWriteReadDelete is the spec's literal create-write-read-delete
// scenario.
func TestS1CreateWriteReadDelete(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	path := pathid.From("/a-file")

	w, err := m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.NoError(t, w.Close(ctx))

	r, err := m.Open(ctx, path, vfs.OpenOptions{Read: true})
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	length, err := r.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(11), length)
	require.NoError(t, r.Close(ctx))

	require.NoError(t, m.RemoveFile(ctx, path))
	_, err = m.Open(ctx, path, vfs.OpenOptions{Read: true})
	require.True(t, errors.Is(errors.NotFound, err))
}

// TestS2NestedDirectories is the spec's literal nested-directory scenario.
func TestS2NestedDirectories(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	aFile := pathid.From("/a-file")
	w, err := m.Open(ctx, aFile, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	err = m.CreateDirAll(ctx, aFile)
	require.Error(t, err)

	require.NoError(t, m.CreateDirAll(ctx, pathid.From("/a/b")))
	require.True(t, m.Exists(ctx, pathid.From("/a")))
	require.True(t, m.Exists(ctx, pathid.From("/a/b")))

	nested, err := m.Open(ctx, pathid.From("/a/b/file"), vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	require.NoError(t, nested.Close(ctx))

	require.NoError(t, m.RemoveDirAll(ctx, pathid.From("/")))
	require.False(t, m.Exists(ctx, pathid.From("/a")))
	require.False(t, m.Exists(ctx, pathid.From("/a/b")))
	require.False(t, m.Exists(ctx, pathid.From("/a/b/file")))
	require.False(t, m.Exists(ctx, aFile))
}

// TestS3WritePastEnd is the spec's literal write-past-end scenario.
func TestS3WritePastEnd(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	path := pathid.From("/gap")

	f, err := m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	defer f.Close(ctx)

	_, err = f.Seek(5, io.SeekStart)
	require.NoError(t, err)
	n, err := f.Write([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	length, err := f.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(6), length)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 'x'}, data)
}

// TestS4BatchWait is the spec's literal ten-file batch-wait scenario.
func TestS4BatchWait(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	batch, err := m.NewFsyncBatch(ctx)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		f, err := m.Open(ctx, pathid.From("/batch-"+string(rune('a'+i))), vfs.OpenOptions{Write: true, Create: true})
		require.NoError(t, err)
		_, err = f.Write([]byte{'x'})
		require.NoError(t, err)
		require.NoError(t, batch.QueueFsyncAll(f))
		require.NoError(t, f.Close(ctx))
	}

	require.NoError(t, batch.WaitAll(ctx))
}

// TestS5Shutdown is the spec's literal shutdown scenario: existing handles
// still work after shutdown, but new batches are rejected.
func TestS5Shutdown(t *testing.T) {
	m, d := newManager(t)
	ctx := context.Background()

	path := pathid.From("/still-open")
	f, err := m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)

	require.NoError(t, d.Shutdown(ctx))

	_, err = m.NewFsyncBatch(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(errors.Shutdown, err))

	_, err = f.Write([]byte("still works"))
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))
}

// TestS6RenamePreservesContent is the spec's literal rename scenario.
func TestS6RenamePreservesContent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	from, to := pathid.From("/x"), pathid.From("/y")
	f, err := m.Open(ctx, from, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))

	require.NoError(t, m.Rename(ctx, from, to))

	r, err := m.Open(ctx, to, vfs.OpenOptions{Read: true})
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))
	require.NoError(t, r.Close(ctx))

	require.False(t, m.Exists(ctx, from))
}

// TestConcurrentCreateRaceIsBenign exercises the documented duplicate-create
// race: many goroutines opening the same create=true path concurrently must
// all succeed and observe the same underlying bytes.
func TestConcurrentCreateRaceIsBenign(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	path := pathid.From("/raced")

	const n = 32
	var wg sync.WaitGroup
	handles := make([]vfs.File, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	_, err := handles[0].Write([]byte("raced"))
	require.NoError(t, err)

	length, err := handles[1].Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), length)
}
