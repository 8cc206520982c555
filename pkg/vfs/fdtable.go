/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import (
	"github.com/pkg/errors"

	"github.com/maxmcd/cfc-ptrace/internal/constant"
	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
)

// OpenFlags are the access-mode bits the tracer records per descriptor.
type OpenFlags struct {
	Read     bool
	Write    bool
	Append   bool
	Truncate bool
	Create   bool
}

// Entry is the state behind one virtual descriptor.
type Entry struct {
	Path   string
	Cursor int64
	Flags  OpenFlags
}

// FdTable maps synthetic descriptors to open-file state. Numbers start
// at 1000 and are never reused within a trace, keeping them well away
// from anything the kernel hands out. The tracer is single-threaded, so
// there is no locking.
type FdTable struct {
	next    int
	entries map[int]*Entry
}

func NewFdTable() *FdTable {
	return &FdTable{
		next:    constant.VirtualFdBase,
		entries: make(map[int]*Entry),
	}
}

// Allocate hands out the next descriptor for path.
func (t *FdTable) Allocate(path string, flags OpenFlags) int {
	fd := t.next
	t.next++
	t.entries[fd] = &Entry{Path: path, Flags: flags}
	return fd
}

// Lookup returns the entry behind fd, or nil when fd is not virtual.
func (t *FdTable) Lookup(fd int) *Entry {
	return t.entries[fd]
}

// Advance moves fd's cursor by delta.
func (t *FdTable) Advance(fd int, delta int64) error {
	e, ok := t.entries[fd]
	if !ok {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "unknown virtual fd %d", fd)
	}
	e.Cursor += delta
	return nil
}

// Release drops fd. Releasing an unknown fd is an error so close(2) can
// report EBADF faithfully.
func (t *FdTable) Release(fd int) error {
	if _, ok := t.entries[fd]; !ok {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "unknown virtual fd %d", fd)
	}
	delete(t.entries, fd)
	return nil
}

// InRange reports whether fd falls inside the synthetic number space,
// whether or not it is currently open.
func (t *FdTable) InRange(fd int) bool {
	return fd >= constant.VirtualFdBase
}
