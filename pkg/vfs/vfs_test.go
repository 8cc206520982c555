/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */
package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier(t *testing.T) {
	c := NewClassifier("/home/user/fs", "/home/user")

	tests := []struct {
		name    string
		path    string
		virtual bool
	}{
		{name: "under root", path: "/home/user/fs/a.txt", virtual: true},
		{name: "root itself", path: "/home/user/fs", virtual: true},
		{name: "nested", path: "/home/user/fs/dir/b", virtual: true},
		{name: "sibling prefix", path: "/home/user/fsx/a", virtual: false},
		{name: "outside", path: "/etc/hostname", virtual: false},
		{name: "relative under root", path: "fs/a.txt", virtual: true},
		{name: "relative outside", path: "other/a.txt", virtual: false},
		{name: "dot segments", path: "/home/user/other/../fs/c", virtual: true},
		{name: "escapes root", path: "/home/user/fs/../secret", virtual: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.virtual, c.IsVirtual(tt.path))
		})
	}
}

func TestClassifierTracksCwd(t *testing.T) {
	c := NewClassifier("/home/user/fs", "/home/user")
	assert.True(t, c.IsVirtual("fs/a"))

	c.SetCwd("/home/user/fs")
	assert.True(t, c.IsVirtual("a"))
	assert.Equal(t, "/home/user/fs/a", c.Resolve("a"))

	c.SetCwd("/tmp")
	assert.False(t, c.IsVirtual("a"))
}

func TestFdTableAllocate(t *testing.T) {
	tbl := NewFdTable()

	fd1 := tbl.Allocate("/fs/a", OpenFlags{Read: true})
	fd2 := tbl.Allocate("/fs/b", OpenFlags{Write: true})
	assert.Equal(t, 1000, fd1)
	assert.Equal(t, 1001, fd2)

	e := tbl.Lookup(fd1)
	require.NotNil(t, e)
	assert.Equal(t, "/fs/a", e.Path)
	assert.Equal(t, int64(0), e.Cursor)
	assert.True(t, e.Flags.Read)
}

func TestFdTableNumbersNeverReused(t *testing.T) {
	tbl := NewFdTable()
	fd1 := tbl.Allocate("/fs/a", OpenFlags{})
	require.NoError(t, tbl.Release(fd1))

	fd2 := tbl.Allocate("/fs/a", OpenFlags{})
	assert.Greater(t, fd2, fd1)
}

func TestFdTableAdvance(t *testing.T) {
	tbl := NewFdTable()
	fd := tbl.Allocate("/fs/a", OpenFlags{Read: true})

	require.NoError(t, tbl.Advance(fd, 5))
	require.NoError(t, tbl.Advance(fd, 3))
	assert.Equal(t, int64(8), tbl.Lookup(fd).Cursor)

	assert.Error(t, tbl.Advance(9999, 1))
}

func TestFdTableRelease(t *testing.T) {
	tbl := NewFdTable()
	fd := tbl.Allocate("/fs/a", OpenFlags{})

	require.NoError(t, tbl.Release(fd))
	assert.Nil(t, tbl.Lookup(fd))
	assert.Error(t, tbl.Release(fd))
}

func TestFdTableInRange(t *testing.T) {
	tbl := NewFdTable()
	assert.False(t, tbl.InRange(3))
	assert.True(t, tbl.InRange(1000))
	assert.True(t, tbl.InRange(12345))
}
