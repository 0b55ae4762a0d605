// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pathid interns filesystem paths into small, cheaply comparable
// handles. Storage engines routinely key maps by path; interning collapses
// otherwise-redundant allocations and makes equality and hashing cheap.
package pathid

import (
	"path"
	"strings"
	"sync"
)

// PathId is an interned handle for a filesystem path. Two PathIds compare
// equal, via ==, whenever the paths they were constructed from are equal
// after canonicalization.
type PathId struct {
	canonical *string
}

var (
	mu   sync.RWMutex
	pool = make(map[string]*string)
)

// intern returns the pool's single *string for s, inserting one if this is
// the first time s has been seen. Follows the same optimistic-read,
// upgrade-to-write-lock, re-check discipline used elsewhere in this module
// for lazily populated shared maps.
func intern(s string) *string {
	mu.RLock()
	if p, ok := pool[s]; ok {
		mu.RUnlock()
		return p
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if p, ok := pool[s]; ok {
		return p
	}
	p := new(string)
	*p = s
	pool[s] = p
	return p
}

func canonicalize(p string) string {
	if p == "" {
		return "."
	}
	clean := path.Clean(filepathToSlash(p))
	// path.Clean collapses "/" to "/" and drops a trailing slash from
	// anything else; both are already what we want.
	return clean
}

// filepathToSlash normalizes host path separators to '/' without pulling
// in path/filepath, since PathId's canonical form is always POSIX-style:
// both backings accept the same paths regardless of host.
func filepathToSlash(p string) string {
	if strings.IndexByte(p, '\\') < 0 {
		return p
	}
	return strings.ReplaceAll(p, `\`, "/")
}

// From interns path p, returning a handle that compares equal to any other
// handle constructed from a path equal to p after canonicalization.
func From(p string) PathId {
	return PathId{canonical: intern(canonicalize(p))}
}

// String returns the canonical path this handle was constructed from.
func (id PathId) String() string {
	if id.canonical == nil {
		return ""
	}
	return *id.canonical
}

// IsZero reports whether id is the zero PathId (constructed with no path,
// as opposed to From("")).
func (id PathId) IsZero() bool {
	return id.canonical == nil
}

// IsAbs reports whether id's path is absolute.
func (id PathId) IsAbs() bool {
	return strings.HasPrefix(id.String(), "/")
}

// Parent returns the PathId for id's parent directory, and true, if one
// exists. The root "/" has no parent.
func (id PathId) Parent() (PathId, bool) {
	s := id.String()
	if s == "/" || s == "." || s == "" {
		return PathId{}, false
	}
	dir := path.Dir(s)
	if dir == s {
		return PathId{}, false
	}
	return From(dir), true
}

// Join interns the path formed by joining id with the given elements,
// using '/' as the separator regardless of host.
func Join(id PathId, elems ...string) PathId {
	all := append([]string{id.String()}, elems...)
	return From(strings.Join(all, "/"))
}
