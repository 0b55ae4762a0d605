// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Once captures at most one error, safely across multiple goroutines. It is
// used by the durability manager to decide which of several concurrently
// failing workers gets to report its error at shutdown; the rest are
// dropped by design.
//
// A zero Once is ready to use.
type Once struct {
	mu  sync.Mutex
	err unsafe.Pointer // *error
}

// Err returns the first non-nil error passed to Set, or nil.
func (o *Once) Err() error {
	p := atomic.LoadPointer(&o.err)
	if p == nil {
		return nil
	}
	return *(*error)(p)
}

// Set records err if no error has been recorded yet. Subsequent calls
// after the first non-nil err are ignored.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	if o.err == nil {
		atomic.StorePointer(&o.err, unsafe.Pointer(&err))
	}
	o.mu.Unlock()
}
