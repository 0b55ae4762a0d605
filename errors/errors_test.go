// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"bytes"
	"encoding/gob"
	goerrors "errors"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khonsulabs/file-manager/errors"
)

func TestError(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	e1 := errors.E(errors.NotFound, "opening file", err)
	require.Equal(t, "opening file: not found: open /dev/notexist: no such file or directory", e1.Error())

	e2 := errors.E(err)
	require.Equal(t, "not found: open /dev/notexist: no such file or directory", e2.Error())

	for _, e := range []error{e1, e2} {
		require.True(t, errors.Is(errors.NotFound, e))
	}
}

func TestErrorChaining(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	err = errors.E("failed to open file", err)
	err = errors.E(errors.Unsupported, "cannot proceed", err)
	require.Equal(t,
		"cannot proceed: unsupported:\n\tfailed to open file: not found: open /dev/notexist: no such file or directory",
		err.Error())
}

func TestMessage(t *testing.T) {
	require.Equal(t, "hello", errors.E("hello").Error())
	require.Equal(t, "hello world", errors.E("hello", "world").Error())
}

func TestGobEncoding(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	err = errors.E("failed to open file", err)
	err = errors.E(errors.ThreadJoin, "cannot proceed", err)

	var b bytes.Buffer
	require.NoError(t, gob.NewEncoder(&b).Encode(errors.Recover(err)))
	e2 := new(errors.Error)
	require.NoError(t, gob.NewDecoder(&b).Decode(e2))
	require.Equal(t, err.Error(), e2.Error())
}

func TestStdInterop(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	wrapped := errors.E(err, "wrapped")
	require.True(t, errors.Is(errors.NotFound, wrapped))
	require.True(t, goerrors.Is(wrapped, fs.ErrNotExist))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, errors.Other, errors.KindOf(goerrors.New("plain")))
	require.Equal(t, errors.Unsupported, errors.KindOf(errors.E(errors.Unsupported, "nope")))
}

func TestToIOError(t *testing.T) {
	require.Nil(t, errors.ToIOError(nil))

	plain := goerrors.New("boom")
	wrapped := errors.ToIOError(plain)
	require.Equal(t, errors.Other, errors.KindOf(wrapped))

	already := errors.E(errors.Shutdown, "stopped")
	require.Same(t, already, errors.ToIOError(already))
}

func TestErrnoMapping(t *testing.T) {
	notFound := errors.ToIOError(errors.E(errors.NotFound, "missing"))
	require.True(t, goerrors.Is(notFound, syscall.ENOENT))
	require.False(t, goerrors.Is(notFound, syscall.EEXIST))

	exists := errors.ToIOError(errors.E(errors.AlreadyExists, "present"))
	require.True(t, goerrors.Is(exists, syscall.EEXIST))

	errno, ok := errors.Unsupported.Errno()
	require.True(t, ok)
	require.Equal(t, syscall.ENOTSUP, errno)

	_, ok = errors.Other.Errno()
	require.False(t, ok)
}
