/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */
package remote

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	req := &Request{ID: "r1", Operation: OpWrite, Path: "/fs/a", Offset: 42}
	payload := []byte{1, 2, 3, 4}

	frame, err := EncodeFrame(req, payload)
	require.NoError(t, err)

	got, gotPayload, err := DecodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.Equal(t, payload, gotPayload)
}

func TestFrameNoPayload(t *testing.T) {
	resp := &Response{ID: "r2", Success: true, BytesWritten: 9}
	frame, err := EncodeFrame(resp, nil)
	require.NoError(t, err)

	got, payload, err := DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
	assert.Empty(t, payload)
}

func TestFrameLengthPrefixIsLittleEndian(t *testing.T) {
	frame, err := EncodeFrame(&Request{ID: "x", Operation: OpStat, Path: "/p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(frame)-4), binary.LittleEndian.Uint32(frame[:4]))
}

func TestDecodeMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "short prefix", frame: []byte{1, 0}},
		{name: "head longer than frame", frame: []byte{255, 0, 0, 0, '{', '}'}},
		{name: "head not json", frame: []byte{2, 0, 0, 0, 'n', 'o'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeRequest(tt.frame)
			assert.Error(t, err)
		})
	}
}
