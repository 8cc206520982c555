/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package errdefs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsNotFound(errors.Wrap(ErrNotFound, "/fs/a")))
	assert.True(t, IsAlreadyExists(errors.Wrap(ErrAlreadyExists, "/fs/b")))
	assert.True(t, IsChunkNotFound(errors.Wrapf(ErrChunkNotFound, "at index %d", 3)))
	assert.True(t, IsConnectionLost(errors.Wrap(ErrConnectionLost, "eof")))

	assert.False(t, IsNotFound(errors.New("something else")))
	assert.False(t, IsAlreadyExists(ErrNotFound))
}

func TestFromMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{name: "not found", msg: "file not found: /fs/a", want: ErrNotFound},
		{name: "wrapped not found", msg: "/fs/a: file not found", want: ErrNotFound},
		{name: "exists", msg: "/fs/b: destination file already exists", want: ErrAlreadyExists},
		{name: "chunk", msg: "chunk not found: at index 7", want: ErrChunkNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, FromMessage(tt.msg), tt.want)
		})
	}
}

func TestFromMessageUnknown(t *testing.T) {
	err := FromMessage("disk exploded")
	assert.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.Equal(t, "disk exploded", err.Error())
}
