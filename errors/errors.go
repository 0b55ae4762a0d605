// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package errors implements an error type that carries one of a small,
// fixed set of interpretable kinds, so that the filesystem contract can
// expose a single error type across both of its backings. Errors can be
// chained: an Error's Err field attributes it to an underlying cause. It
// is adapted from the GRAIL errors package, trimmed to the kinds this
// domain actually produces.
package errors

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io/fs"
	"syscall"
)

func init() {
	gob.Register(new(Error))
}

// Separator is inserted between chained errors in error messages.
var Separator = ":\n\t"

// Kind classifies an Error so callers can branch on it without parsing
// text.
type Kind int

const (
	// Other indicates an error that doesn't fit any of the kinds below.
	Other Kind = iota
	// NotFound indicates a missing file or directory.
	NotFound
	// AlreadyExists indicates a directory-creation conflict with a
	// non-directory entry.
	AlreadyExists
	// Unsupported indicates an operation this backing does not perform
	// (relative path, removing root, I/O against a directory handle).
	Unsupported
	// Shutdown indicates the durability manager is no longer running.
	Shutdown
	// ThreadJoin indicates a durability worker could not be joined.
	ThreadJoin
	// InternalInconsistency indicates a durability-subsystem mutex was
	// found in an inconsistent state.
	InternalInconsistency

	maxKind
)

var kinds = map[Kind]string{
	Other:                 "unknown error",
	NotFound:              "not found",
	AlreadyExists:         "already exists",
	Unsupported:           "unsupported",
	Shutdown:              "fsync manager is not running",
	ThreadJoin:            "error joining an fsync worker",
	InternalInconsistency: "internal inconsistency",
}

// kindStdErrs maps kinds to their standard-library equivalent, used both
// to classify wrapped stdlib errors and to answer errors.Is against
// fs.ErrNotExist et al.
var kindStdErrs = map[Kind]error{
	NotFound:      fs.ErrNotExist,
	AlreadyExists: fs.ErrExist,
}

// kindErrnos maps a Kind to the syscall.Errno a host filesystem call would
// produce for the same condition, adapted from the teacher's own
// kindErrnos/(Kind).Errno(). Kinds with no host equivalent (Other, Shutdown,
// ThreadJoin, InternalInconsistency) are absent.
var kindErrnos = map[Kind]syscall.Errno{
	NotFound:      syscall.ENOENT,
	AlreadyExists: syscall.EEXIST,
	Unsupported:   syscall.ENOTSUP,
}

// Errno maps k to an equivalent syscall.Errno, or false if there's no good
// match.
func (k Kind) Errno() (syscall.Errno, bool) {
	errno, ok := kindErrnos[k]
	return errno, ok
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Error is the standard error type returned at the FileManager/File
// boundary. Errors may be chained through Err, and are gob-encodable so a
// durability error produced on a worker goroutine survives being reported
// back through a channel without losing its Kind.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Message is an optional human-readable message.
	Message string
	// Err is the error that caused this one, if any.
	Err error
}

// E constructs an Error from the provided arguments: a Kind sets the
// error's kind, a string sets (appends to) its message, and an error sets
// its cause. If the kind is still Other (whether or not Other was passed
// explicitly) and a cause is given, E takes the cause's kind when the cause
// is an *Error, and otherwise attempts to infer the kind from the cause via
// errors.Is against the kinds in kindStdErrs.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg bytes.Buffer
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteByte(' ')
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			return &Error{Kind: Other, Message: "errors.E: unrecognized argument"}
		}
	}
	e.Message = msg.String()
	if e.Err != nil && e.Kind == Other {
		if inner, ok := e.Err.(*Error); ok {
			e.Kind = inner.Kind
		} else {
			for kind := Kind(0); kind < maxKind; kind++ {
				if std, ok := kindStdErrs[kind]; ok && errors.Is(e.Err, std) {
					e.Kind = kind
					break
				}
			}
		}
	}
	return e
}

// New is synonymous with the standard library's errors.New, provided here
// so callers need import only this package.
func New(msg string) error { return errors.New(msg) }

// Recover converts any error into an *Error, wrapping it with E if it
// isn't already one (so its kind is inferred as E describes, Other if
// nothing matches).
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b)
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b)
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if inner, ok := e.Err.(*Error); ok {
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(inner.Error())
	} else {
		pad(b)
		b.WriteString(e.Err.Error())
	}
}

func pad(b *bytes.Buffer) {
	if b.Len() > 0 {
		b.WriteString(": ")
	}
}

// Unwrap returns e's cause, if any, letting the standard library's
// errors.Unwrap and errors.Is/As work with *Error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether e's kind matches err's, consulting kindStdErrs and
// kindErrnos so that both errors.Is(e, fs.ErrNotExist) and
// errors.Is(e, syscall.ENOENT) work.
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	if std, ok := kindStdErrs[e.Kind]; ok && err == std {
		return true
	}
	if errno, ok := kindErrnos[e.Kind]; ok {
		if target, ok := err.(syscall.Errno); ok && target == errno {
			return true
		}
	}
	return false
}

// Is reports whether err's kind is kind, unwrapping *Error chains until a
// non-Other kind is found (mirroring the teacher's Other-is-unknown
// convention: a wrapping Error that didn't set its own kind defers to its
// cause's kind).
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if inner, ok := e.Err.(*Error); ok {
		return is(kind, inner)
	}
	return false
}

// KindOf returns err's Kind. An error that is not an *Error gets the kind
// E would infer for it: NotFound or AlreadyExists for causes matching
// fs.ErrNotExist or fs.ErrExist, Other for anything else.
func KindOf(err error) Kind {
	return Recover(err).Kind
}

type gobError struct {
	Kind    Kind
	Message string
	Next    *gobError
	Err     string
}

func (ge *gobError) toError() *Error {
	e := &Error{Kind: ge.Kind, Message: ge.Message}
	switch {
	case ge.Next != nil:
		e.Err = ge.Next.toError()
	case ge.Err != "":
		e.Err = errors.New(ge.Err)
	}
	return e
}

func (e *Error) toGobError() *gobError {
	ge := &gobError{Kind: e.Kind, Message: e.Message}
	if e.Err == nil {
		return ge
	}
	if inner, ok := e.Err.(*Error); ok {
		ge.Next = inner.toGobError()
	} else {
		ge.Err = e.Err.Error()
	}
	return ge
}

// GobEncode implements gob.GobEncoder, replacing unknown underlying error
// types with their string form.
func (e *Error) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(e.toGobError())
	return b.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (e *Error) GobDecode(p []byte) error {
	var ge gobError
	if err := gob.NewDecoder(bytes.NewBuffer(p)).Decode(&ge); err != nil {
		return err
	}
	*e = *ge.toError()
	return nil
}

// ToIOError losslessly exposes err as a plain error suitable for crossing
// the FileManager/File boundary: *Error values pass through unchanged
// (they already implement error and Unwrap), everything else is wrapped
// by E, which gives it Kind NotFound or AlreadyExists when it matches
// fs.ErrNotExist or fs.ErrExist and Kind Other otherwise. The Kind a
// returned *Error carries is comparable, via
// the standard library's errors.Is, against the syscall.Errno a real host
// filesystem call would have produced for the same condition (the
// kindErrnos mapping consulted by (*Error).Is), so callers that only know
// errno-style checks still interoperate with this taxonomy.
func ToIOError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return E(Other, err)
}
