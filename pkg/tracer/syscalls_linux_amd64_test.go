/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */
package tracer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

func TestErrnoFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int64
	}{
		{name: "nil", err: nil, want: 0},
		{name: "not found", err: errors.Wrap(errdefs.ErrNotFound, "/fs/x"), want: -int64(unix.ENOENT)},
		{name: "exists", err: errdefs.ErrAlreadyExists, want: -int64(unix.EEXIST)},
		{name: "chunk missing", err: errdefs.ErrChunkNotFound, want: -int64(unix.EIO)},
		{name: "anything else", err: errors.New("boom"), want: -int64(unix.EIO)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errnoFor(tt.err))
		})
	}
}

func TestOpenFlagsFrom(t *testing.T) {
	tests := []struct {
		name  string
		flags int
		want  string
	}{
		{name: "rdonly", flags: unix.O_RDONLY, want: "r"},
		{name: "wronly", flags: unix.O_WRONLY, want: "w"},
		{name: "rdwr", flags: unix.O_RDWR, want: "rw"},
		{name: "append", flags: unix.O_WRONLY | unix.O_APPEND, want: "wa"},
		{name: "trunc creat", flags: unix.O_RDWR | unix.O_TRUNC | unix.O_CREAT, want: "rwtc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			of := openFlagsFrom(tt.flags)
			got := ""
			if of.Read {
				got += "r"
			}
			if of.Write {
				got += "w"
			}
			if of.Append {
				got += "a"
			}
			if of.Truncate {
				got += "t"
			}
			if of.Create {
				got += "c"
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatFromFileInfo(t *testing.T) {
	fi := &store.FileInfo{
		FileID:     7,
		Filename:   "/fs/a",
		FileSize:   1536,
		CreatedAt:  "2026-01-02T03:04:05Z",
		ModifiedAt: "2026-01-02T03:04:06Z",
	}
	st := statFromFileInfo(fi)
	assert.Equal(t, uint64(7), st.Ino)
	assert.Equal(t, int64(1536), st.Size)
	assert.Equal(t, uint32(unix.S_IFREG|0644), st.Mode)
	assert.Equal(t, int64(3), st.Blocks)
	assert.NotZero(t, st.Mtim.Sec)
	assert.Equal(t, st.Mtim, st.Ctim)
}
