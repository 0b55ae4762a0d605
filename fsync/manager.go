// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fsync implements the batched durability subsystem: a
// process-wide, lazily-started pool of worker goroutines that service
// durability (fsync-class) requests, and the batch object callers use to
// issue a group of such requests and then block until all of them have
// completed.
//
// The pool is elastic rather than pre-allocated: a worker spawns one
// sibling the first time it notices queued work it hasn't started on yet,
// up to a configurable cap, so the steady-state goroutine count tracks
// offered load instead of being fixed at startup cost.
package fsync

import (
	"context"
	"runtime"
	"sync"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/log"
)

type lifecycle int

const (
	uninitialized lifecycle = iota
	running
	shutdown
)

// runningPool is the state that exists only while the manager is running:
// the shared command queue, a WaitGroup tracking every worker that has
// ever been spawned (root and siblings alike), and the first error any of
// them reported.
type runningPool struct {
	queue *commandQueue
	wg    sync.WaitGroup
	errs  errors.Once
}

// Manager owns the worker pool backing every Batch it hands out. The zero
// value is not usable; construct one with NewManager. A Manager is cheap
// to copy: copies share the same pool and the same view of its lifecycle.
type Manager struct {
	state *managerState
}

type managerState struct {
	mu         sync.Mutex
	lifecycle  lifecycle
	maxThreads int
	pool       *runningPool
}

// NewManager returns a Manager capped at maxThreads workers. A maxThreads
// of 0 or less resolves to the host's available parallelism, falling back
// to 4 if that cannot be determined — the same default
// runtime.NumCPU()-driven convention used for traverse.Parallel elsewhere
// in this codebase's lineage. No goroutine is started until the first
// batch is requested.
func NewManager(maxThreads int) *Manager {
	if maxThreads <= 0 {
		maxThreads = defaultMaxThreads()
	}
	return &Manager{state: &managerState{maxThreads: maxThreads}}
}

func defaultMaxThreads() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 4
}

// NewBatch returns a fresh, empty durability batch. The first call across
// the lifetime of a Manager (or any of its copies) transitions the pool
// from uninitialized to running, spawning the first worker. Subsequent
// calls are cheap. NewBatch fails with a Shutdown-kind error once Shutdown
// has been called.
func (m *Manager) NewBatch(ctx context.Context) (*Batch, error) {
	pool, err := m.state.ensureRunning()
	if err != nil {
		return nil, err
	}
	return &Batch{queue: pool.queue, notify: newNotify()}, nil
}

func (s *managerState) ensureRunning() (*runningPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.lifecycle {
	case shutdown:
		return nil, errors.E(errors.Shutdown, "fsync manager is not running")
	case running:
		return s.pool, nil
	default: // uninitialized
		pool := &runningPool{queue: newCommandQueue()}
		spawnBudget := s.maxThreads - 1
		if spawnBudget < 0 {
			spawnBudget = 0
		}
		pool.wg.Add(1)
		go worker(pool, spawnBudget)
		s.lifecycle = running
		s.pool = pool
		return pool, nil
	}
}

// Shutdown swaps the manager to its terminal state, closes the command
// queue (which is how workers learn there is no more work coming), and
// waits for every worker to drain its remaining commands and exit. It
// returns the first error any worker reported while running a command, if
// any; later errors are lost by design, since the caller already has a
// fatal failure to deal with. Calling Shutdown on an already-shut-down
// Manager is a no-op. On a never-started Manager it has no workers to stop
// and returns nil, but still moves the Manager to its terminal state, so
// later NewBatch calls fail.
func (m *Manager) Shutdown(ctx context.Context) error {
	s := m.state
	s.mu.Lock()
	pool := s.pool
	already := s.lifecycle != running
	s.lifecycle = shutdown
	s.pool = nil
	s.mu.Unlock()

	if already {
		return nil
	}

	pool.queue.close()
	pool.wg.Wait()
	if err := pool.errs.Err(); err != nil {
		return errors.E(errors.ThreadJoin, err)
	}
	return nil
}

// worker services commands from pool's queue until it is closed and
// drained. spawnBudget is how many more siblings this worker is still
// allowed to spawn; once it spawns one, its own budget is spent — it
// passes the decremented budget to the child and may not spawn again.
func worker(pool *runningPool, spawnBudget int) {
	defer pool.wg.Done()

	canSpawn := spawnBudget > 0
	for {
		cmd, ok := pool.queue.get()
		if !ok {
			return
		}

		if canSpawn && pool.queue.nonEmpty() {
			canSpawn = false
			pool.wg.Add(1)
			log.Debug.Printf("fsync: spawning worker, budget %d", spawnBudget-1)
			go worker(pool, spawnBudget-1)
		}

		if err := runCommand(cmd); err != nil {
			// Mirrors the Rust source's use of `?` inside the worker
			// loop: a failed sync aborts this worker's loop entirely
			// rather than being retried or reported through the batch.
			// The command's batch never sees its outstanding count
			// decremented for this command, so a caller blocked in
			// WaitAll on this batch will not return; this is treated as
			// a fatal condition for the process, surfaced at Shutdown.
			pool.errs.Set(err)
			log.Error.Printf("fsync: worker exiting after sync error: %v", err)
			return
		}
	}
}

func runCommand(cmd command) error {
	ctx := context.Background()
	var err error
	if cmd.all {
		err = cmd.file.SyncAll(ctx)
	} else {
		err = cmd.file.SyncData(ctx)
	}
	if err != nil {
		return err
	}

	cmd.batch.mu.Lock()
	cmd.batch.outstanding--
	cmd.batch.mu.Unlock()
	cmd.batch.cond.Signal()
	return nil
}
