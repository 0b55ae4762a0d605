// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fsync

import (
	"context"
	"sync"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/vfs"
)

// command is a single queued durability request: sync a file and, once
// done, decrement its batch's outstanding count.
type command struct {
	all   bool
	file  vfs.File
	batch *notify
}

// notify is a batch's completion gate: outstanding counts commands
// enqueued but not yet acknowledged by a worker, and cond is signalled
// each time a worker acknowledges one.
type notify struct {
	mu          sync.Mutex
	cond        *sync.Cond
	outstanding int
}

func newNotify() *notify {
	n := &notify{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// Batch groups a set of durability requests behind a single completion
// gate. A Batch is obtained from Manager.NewBatch and is meant to be used
// by a single goroutine: queue some work, then call WaitAll exactly once.
type Batch struct {
	queue  *commandQueue
	notify *notify
}

var _ vfs.Batch = (*Batch)(nil)

// QueueFsyncData schedules a data-only durability sync of f.
func (b *Batch) QueueFsyncData(f vfs.File) error {
	return b.enqueue(f, false)
}

// QueueFsyncAll schedules a contents-and-metadata durability sync of f.
func (b *Batch) QueueFsyncAll(f vfs.File) error {
	return b.enqueue(f, true)
}

func (b *Batch) enqueue(f vfs.File, all bool) error {
	b.notify.mu.Lock()
	b.notify.outstanding++
	b.notify.mu.Unlock()

	if !b.queue.putIfOpen(command{all: all, file: f, batch: b.notify}) {
		// The increment above is not rolled back: shutdown is terminal
		// for this batch, and outstanding will never be observed again
		// (WaitAll on a batch whose manager has shut down mid-flight is a
		// caller error; nothing in this layer retries).
		return errors.E(errors.Shutdown, "fsync manager is not running")
	}
	return nil
}

// WaitAll blocks until every command queued on this batch has been
// acknowledged, then returns nil. It cannot miss a notification: every
// decrement of outstanding happens under notify.mu, the same mutex WaitAll
// holds while checking it.
//
// WaitAll consumes the batch: it is meant to be called exactly once, by
// the goroutine that built the batch up.
func (b *Batch) WaitAll(ctx context.Context) error {
	b.notify.mu.Lock()
	defer b.notify.mu.Unlock()
	for b.notify.outstanding > 0 {
		b.notify.cond.Wait()
	}
	return nil
}
