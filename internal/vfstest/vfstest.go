// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package vfstest holds a contract test suite shared by every vfs.FileManager
// backing, the same way the teacher's file/internal/testutil shares test
// logic across its Implementations. Each backing's own test file supplies a
// fresh Manager and a directory PathId to work under.
package vfstest

import (
	"context"
	"io"
	"testing"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.Reader) string {
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// TestEmptyFile exercises creating, closing, and reading back an empty
// file at dir/"empty".
func TestEmptyFile(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	path := pathid.Join(dir, "empty")
	f, err := m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))

	f, err = m.Open(ctx, path, vfs.OpenOptions{Read: true})
	require.NoError(t, err)
	require.Equal(t, "", readAll(t, f))
	n, err := f.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.NoError(t, f.Close(ctx))
}

// TestNotFound exercises that opening or listing a missing path fails with
// a NotFound-kind error.
func TestNotFound(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	missing := pathid.Join(dir, "does-not-exist")
	_, err := m.Open(ctx, missing, vfs.OpenOptions{Read: true})
	require.Error(t, err)
	require.True(t, errors.Is(errors.NotFound, err))

	_, err = m.List(ctx, missing)
	require.Error(t, err)
	require.True(t, errors.Is(errors.NotFound, err))
}

// TestWriteReadRoundTrip exercises a basic write-then-read cycle, plus
// seeking around within the written contents.
func TestWriteReadRoundTrip(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	path := pathid.Join(dir, "roundtrip.txt")
	require.NoError(t, vfs.WriteAll(ctx, m, path, []byte("a purple fox jumped over a blue cat")))

	data, err := vfs.ReadAll(ctx, m, path)
	require.NoError(t, err)
	require.Equal(t, "a purple fox jumped over a blue cat", string(data))

	f, err := m.Open(ctx, path, vfs.OpenOptions{Read: true})
	require.NoError(t, err)
	defer f.Close(ctx)

	_, err = f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, "purple fox jumped over a blue cat", readAll(t, f))

	_, err = f.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, "cat", readAll(t, f))
}

// TestSetLen exercises truncation and zero-fill extension.
func TestSetLen(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	path := pathid.Join(dir, "setlen.txt")
	require.NoError(t, vfs.WriteAll(ctx, m, path, []byte("0123456789")))

	f, err := m.Open(ctx, path, vfs.OpenOptions{Read: true, Write: true})
	require.NoError(t, err)
	defer f.Close(ctx)

	require.NoError(t, f.SetLen(ctx, 4))
	n, err := f.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	require.NoError(t, f.SetLen(ctx, 6))
	n, err = f.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data := readAll(t, f)
	require.Equal(t, "0123\x00\x00", data)
}

// TestRenameAndRemove exercises Rename, RemoveFile, and Exists together.
func TestRenameAndRemove(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	from := pathid.Join(dir, "old.txt")
	to := pathid.Join(dir, "new.txt")
	require.NoError(t, vfs.WriteAll(ctx, m, from, []byte("hello")))

	require.NoError(t, m.Rename(ctx, from, to))
	require.False(t, m.Exists(ctx, from))
	require.True(t, m.Exists(ctx, to))

	data, err := vfs.ReadAll(ctx, m, to)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	require.NoError(t, m.RemoveFile(ctx, to))
	require.False(t, m.Exists(ctx, to))
}

// TestDirectories exercises CreateDirAll, List, and RemoveDirAll.
func TestDirectories(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	nested := pathid.Join(dir, "a", "b", "c")
	require.NoError(t, m.CreateDirAll(ctx, nested))
	require.True(t, m.Exists(ctx, nested))

	// CreateDirAll on an already-existing directory succeeds.
	require.NoError(t, m.CreateDirAll(ctx, nested))

	require.NoError(t, vfs.WriteAll(ctx, m, pathid.Join(nested, "leaf.txt"), []byte("x")))
	children, err := m.List(ctx, nested)
	require.NoError(t, err)
	require.Len(t, children, 1)

	require.NoError(t, m.RemoveDirAll(ctx, pathid.Join(dir, "a")))
	require.False(t, m.Exists(ctx, nested))
}

// TestDurabilityBatch exercises the NewFsyncBatch/QueueFsyncData/WaitAll
// path end to end against a real file handle.
func TestDurabilityBatch(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	path := pathid.Join(dir, "durable.txt")
	f, err := m.Open(ctx, path, vfs.OpenOptions{Write: true, Create: true})
	require.NoError(t, err)
	defer f.Close(ctx)

	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)

	batch, err := m.NewFsyncBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.QueueFsyncData(f))
	require.NoError(t, batch.QueueFsyncAll(f))
	require.NoError(t, batch.WaitAll(ctx))
}

// TestClone exercises TryClone: the clone must see the same bytes but
// track its own cursor.
func TestClone(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	path := pathid.Join(dir, "clone.txt")
	require.NoError(t, vfs.WriteAll(ctx, m, path, []byte("cloneme")))

	f, err := m.Open(ctx, path, vfs.OpenOptions{Read: true})
	require.NoError(t, err)
	defer f.Close(ctx)

	clone, err := f.TryClone(ctx)
	require.NoError(t, err)
	defer clone.Close(ctx)

	_, err = f.Seek(3, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, "neme", readAll(t, f))
	require.Equal(t, "cloneme", readAll(t, clone))
}

// All runs the full shared contract suite against m, with every test
// working under its own subdirectory of dir so the tests don't collide.
func All(ctx context.Context, t *testing.T, m vfs.FileManager, dir pathid.PathId) {
	cases := []struct {
		name string
		run  func(context.Context, *testing.T, vfs.FileManager, pathid.PathId)
	}{
		{"EmptyFile", TestEmptyFile},
		{"NotFound", TestNotFound},
		{"WriteReadRoundTrip", TestWriteReadRoundTrip},
		{"SetLen", TestSetLen},
		{"RenameAndRemove", TestRenameAndRemove},
		{"Directories", TestDirectories},
		{"DurabilityBatch", TestDurabilityBatch},
		{"Clone", TestClone},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			sub := pathid.Join(dir, c.name)
			require.NoError(t, m.CreateDirAll(ctx, sub))
			c.run(ctx, t, m, sub)
		})
	}
}
