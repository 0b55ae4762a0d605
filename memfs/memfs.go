// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package memfs implements the filesystem contract defined by package vfs
// entirely in memory, for deterministic unit testing of code built against
// package vfs without touching disk. Its locking discipline and write
// semantics are grounded on the original implementation's memory backing,
// not on anything in the teacher repo (whose file package has no
// in-memory Implementation at all).
package memfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/khonsulabs/file-manager/errors"
	"github.com/khonsulabs/file-manager/fsync"
	"github.com/khonsulabs/file-manager/pathid"
	"github.com/khonsulabs/file-manager/vfs"
)

// fileEntry is what the files map stores: either a directory marker or a
// pointer to a buffer shared by every handle opened against this path.
type fileEntry struct {
	path  pathid.PathId
	isDir bool
	buf   *sharedBuffer // nil when isDir
}

// sharedBuffer is the backing a file's open handles all point at. Every
// handle gets its own cursor (carried on the File, not here); the bytes
// themselves are shared, matching the duplicate-handle contract.
type sharedBuffer struct {
	mu   sync.RWMutex
	data []byte
}

// state is the data shared by every copy of a Manager: the directory tree
// and the file table. Lock order is always directories before files,
// mirroring the comment on the original implementation's directories
// field.
type state struct {
	dirMu sync.Mutex
	dirs  map[pathid.PathId]map[pathid.PathId]struct{}

	fileMu sync.RWMutex
	files  map[pathid.PathId]*fileEntry
}

// Manager is the in-memory FileManager. Clones (copies of a Manager value)
// share the same directory tree and file table, and the same durability
// worker pool.
type Manager struct {
	state      *state
	durability *fsync.Manager
}

var _ vfs.FileManager = Manager{}

// NewManager returns an empty in-memory FileManager with its root "/"
// pre-populated as a directory, whose durability batches run on
// durability.
func NewManager(durability *fsync.Manager) Manager {
	root := pathid.From("/")
	return Manager{
		durability: durability,
		state: &state{
			dirs:  map[pathid.PathId]map[pathid.PathId]struct{}{root: {}},
			files: map[pathid.PathId]*fileEntry{root: {path: root, isDir: true}},
		},
	}
}

// recoverOther converts a panic raised while dirMu and/or fileMu are held
// into an Other-kind error instead of letting it escape and leave the
// manager's locks inconsistent for later callers to trip over.
func recoverOther(errp *error) {
	if r := recover(); r != nil {
		*errp = errors.E(errors.Other, fmt.Sprintf("memfs: recovered from panic: %v", r))
	}
}

func checkAbsolute(path pathid.PathId) error {
	if !path.IsAbs() {
		return errors.E(errors.Unsupported, "memfs requires absolute paths: "+path.String())
	}
	return nil
}

// Open implements vfs.FileManager.
func (m Manager) Open(ctx context.Context, path pathid.PathId, options vfs.OpenOptions) (_ vfs.File, err error) {
	if err := checkAbsolute(path); err != nil {
		return nil, err
	}
	defer recoverOther(&err)

	s := m.state
	s.fileMu.RLock()
	entry, ok := s.files[path]
	s.fileMu.RUnlock()
	if ok {
		return detach(entry), nil
	}
	if !options.Create {
		return nil, errors.E(errors.NotFound, "open "+path.String())
	}

	parent, ok := path.Parent()
	if !ok {
		// path is "/", which always exists in files and is handled above.
		return nil, errors.E(errors.NotFound, "open "+path.String())
	}

	// The file wasn't found, but create was requested: re-check under the
	// directories-then-files write lock, since another goroutine may have
	// raced us to create it in between the read above and here.
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	children, ok := s.dirs[parent]
	if !ok {
		return nil, errors.E(errors.NotFound, "open "+path.String())
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if entry, ok := s.files[path]; ok {
		// Someone else created it first; the duplicate create is benign.
		return detach(entry), nil
	}
	entry = &fileEntry{path: path, buf: &sharedBuffer{}}
	s.files[path] = entry
	children[path] = struct{}{}
	return detach(entry), nil
}

func detach(entry *fileEntry) *File {
	if entry.isDir {
		return &File{path: entry.path, isDir: true}
	}
	return &File{path: entry.path, buf: entry.buf}
}

// Exists implements vfs.FileManager.
func (m Manager) Exists(ctx context.Context, path pathid.PathId) bool {
	s := m.state
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()
	_, ok := s.files[path]
	return ok
}

// CreateDirAll implements vfs.FileManager.
func (m Manager) CreateDirAll(ctx context.Context, path pathid.PathId) (err error) {
	if err := checkAbsolute(path); err != nil {
		return err
	}
	defer recoverOther(&err)

	s := m.state
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if entry, ok := s.files[path]; ok {
		if !entry.isDir {
			return errors.E(errors.AlreadyExists, "create dir all: path exists as a file: "+path.String())
		}
		return nil
	}

	// Walk upward collecting ancestors (path included) that don't exist
	// yet, nearest-to-path first, stopping at the first ancestor that does
	// exist. That ancestor must already be a directory.
	toCreate := []pathid.PathId{path}
	cur := path
	for {
		parent, ok := cur.Parent()
		if !ok {
			return errors.E(errors.InternalInconsistency, "memfs: / missing from file table")
		}
		entry, exists := s.files[parent]
		if exists && entry.isDir {
			break
		}
		if exists {
			return errors.E(errors.AlreadyExists, "create dir all: "+parent.String()+" exists as a file")
		}
		toCreate = append(toCreate, parent)
		cur = parent
	}

	// toCreate is ordered deepest-first; create shallowest-first so each
	// directory's parent already exists in the maps by the time it's
	// linked in.
	for i := len(toCreate) - 1; i >= 0; i-- {
		p := toCreate[i]
		s.files[p] = &fileEntry{path: p, isDir: true}
		if _, ok := s.dirs[p]; !ok {
			s.dirs[p] = map[pathid.PathId]struct{}{}
		}
		parent, _ := p.Parent()
		if children, ok := s.dirs[parent]; ok {
			children[p] = struct{}{}
		}
	}
	return nil
}

// RemoveDirAll implements vfs.FileManager.
func (m Manager) RemoveDirAll(ctx context.Context, path pathid.PathId) (err error) {
	if err := checkAbsolute(path); err != nil {
		return err
	}
	defer recoverOther(&err)

	s := m.state
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if path.String() == "/" {
		s.dirs = map[pathid.PathId]map[pathid.PathId]struct{}{path: {}}
		s.files = map[pathid.PathId]*fileEntry{path: {path: path, isDir: true}}
		return nil
	}

	toScan := []pathid.PathId{path}
	for len(toScan) > 0 {
		dir := toScan[len(toScan)-1]
		toScan = toScan[:len(toScan)-1]

		children, ok := s.dirs[dir]
		if !ok {
			return errors.E(errors.NotFound, "remove dir all: "+dir.String())
		}
		delete(s.dirs, dir)
		for child := range children {
			entry, ok := s.files[child]
			if !ok {
				return errors.E(errors.InternalInconsistency, "memfs: directory entry missing from file table: "+child.String())
			}
			delete(s.files, child)
			if entry.isDir {
				toScan = append(toScan, entry.path)
			}
		}
		delete(s.files, dir)
		if parent, ok := dir.Parent(); ok {
			if siblings, ok := s.dirs[parent]; ok {
				delete(siblings, dir)
			}
		}
	}
	return nil
}

// RemoveFile implements vfs.FileManager.
func (m Manager) RemoveFile(ctx context.Context, path pathid.PathId) (err error) {
	if err := checkAbsolute(path); err != nil {
		return err
	}
	defer recoverOther(&err)

	parent, ok := path.Parent()
	if !ok {
		return errors.E(errors.Unsupported, "remove file: cannot remove root")
	}

	s := m.state
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if _, ok := s.files[path]; !ok {
		return errors.E(errors.NotFound, "remove file: "+path.String())
	}
	delete(s.files, path)
	if children, ok := s.dirs[parent]; ok {
		delete(children, path)
	}
	return nil
}

// Rename implements vfs.FileManager.
func (m Manager) Rename(ctx context.Context, from, to pathid.PathId) (err error) {
	if err := checkAbsolute(from); err != nil {
		return err
	}
	if err := checkAbsolute(to); err != nil {
		return err
	}
	defer recoverOther(&err)

	fromParent, ok := from.Parent()
	if !ok {
		return errors.E(errors.Unsupported, "rename: cannot rename root")
	}
	toParent, ok := to.Parent()
	if !ok {
		return errors.E(errors.Unsupported, "rename: cannot rename onto root")
	}

	s := m.state
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	entry, ok := s.files[from]
	if !ok {
		return errors.E(errors.NotFound, "rename: "+from.String())
	}
	delete(s.files, from)
	if children, ok := s.dirs[fromParent]; ok {
		delete(children, from)
	}

	entry.path = to
	s.files[to] = entry
	if children, ok := s.dirs[toParent]; ok {
		children[to] = struct{}{}
	}
	return nil
}

// List implements vfs.FileManager.
func (m Manager) List(ctx context.Context, path pathid.PathId) ([]pathid.PathId, error) {
	if err := checkAbsolute(path); err != nil {
		return nil, err
	}
	s := m.state
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	children, ok := s.dirs[path]
	if !ok {
		return nil, errors.E(errors.NotFound, "list "+path.String())
	}
	ids := make([]pathid.PathId, 0, len(children))
	for child := range children {
		ids = append(ids, child)
	}
	return ids, nil
}

// NewFsyncBatch implements vfs.FileManager.
func (m Manager) NewFsyncBatch(ctx context.Context) (vfs.Batch, error) {
	return m.durability.NewBatch(ctx)
}

// Shutdown implements vfs.FileManager.
func (m Manager) Shutdown(ctx context.Context) error {
	return m.durability.Shutdown(ctx)
}
