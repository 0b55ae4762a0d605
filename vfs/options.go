// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package vfs

// OpenOptions enumerates the read/write/create intent for a call to
// FileManager.Open. The zero value requests none of the three; use the
// With* setters to build up the intent you need.
type OpenOptions struct {
	Read   bool
	Write  bool
	Create bool
}

// WithRead returns a copy of o with Read set to read.
func (o OpenOptions) WithRead(read bool) OpenOptions {
	o.Read = read
	return o
}

// WithWrite returns a copy of o with Write set to write.
func (o OpenOptions) WithWrite(write bool) OpenOptions {
	o.Write = write
	return o
}

// WithCreate returns a copy of o with Create set to create.
func (o OpenOptions) WithCreate(create bool) OpenOptions {
	o.Create = create
	return o
}
