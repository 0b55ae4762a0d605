// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"fmt"
	"io"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/pathid"
)

// ReadAll opens path read-only on m and returns its entire contents.
func ReadAll(ctx context.Context, m FileManager, path pathid.PathId) (_ []byte, err error) {
	f, err := m.Open(ctx, path, OpenOptions{Read: true})
	if err != nil {
		return nil, err
	}
	defer errors.CleanUpCtx(ctx, f.Close, &err)

	return io.ReadAll(f)
}

// WriteAll opens path on m, creating it if necessary, truncates it, and
// writes data.
func WriteAll(ctx context.Context, m FileManager, path pathid.PathId, data []byte) (err error) {
	f, err := m.Open(ctx, path, OpenOptions{Write: true, Create: true})
	if err != nil {
		return err
	}
	defer errors.CleanUpCtx(ctx, f.Close, &err)

	if err := f.SetLen(ctx, 0); err != nil {
		return err
	}
	n, err := f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("vfs.WriteAll %s: requested to write %d bytes, wrote %d", path, len(data), n)
	}
	return nil
}
