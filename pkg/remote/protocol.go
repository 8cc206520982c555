/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package remote carries the storage protocol between the tracer and the
// storage service: length-prefixed JSON frames with an optional trailing
// binary payload, exchanged as WebSocket binary messages. The framing is
// self-describing, so requests and responses share one shape.
package remote

import (
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

// Operation names, the `operation` tag of every request.
const (
	OpRead     = "read"
	OpWrite    = "write"
	OpStat     = "stat"
	OpTruncate = "truncate"
	OpRename   = "rename"
	OpUnlink   = "unlink"
)

// Request is the JSON head of a request frame. Write requests carry their
// data as the frame payload, not in the JSON.
type Request struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	NewPath   string `json:"new_path,omitempty"`
	Offset    int64  `json:"offset,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Response is the JSON head of a response frame. Read responses carry the
// delivered bytes as the frame payload.
type Response struct {
	ID           string          `json:"id"`
	Success      bool            `json:"success"`
	BytesRead    int64           `json:"bytes_read,omitempty"`
	BytesWritten int64           `json:"bytes_written,omitempty"`
	Error        string          `json:"error,omitempty"`
	File         *store.FileInfo `json:"file,omitempty"`
}

// EncodeFrame renders [u32 json_len LE][json][payload].
func EncodeFrame(head interface{}, payload []byte) ([]byte, error) {
	body, err := json.Marshal(head)
	if err != nil {
		return nil, errors.Wrap(err, "marshal frame head")
	}
	frame := make([]byte, 4+len(body)+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	copy(frame[4+len(body):], payload)
	return frame, nil
}

// DecodeFrame splits a frame into its JSON head and payload without
// interpreting the head.
func DecodeFrame(frame []byte) (head, payload []byte, err error) {
	if len(frame) < 4 {
		return nil, nil, errors.Errorf("malformed frame: %d bytes, want at least 4", len(frame))
	}
	jsonLen := binary.LittleEndian.Uint32(frame)
	if uint64(jsonLen) > uint64(len(frame)-4) {
		return nil, nil, errors.Errorf("malformed frame: head length %d exceeds frame of %d bytes", jsonLen, len(frame))
	}
	return frame[4 : 4+jsonLen], frame[4+jsonLen:], nil
}

// DecodeRequest parses a request frame.
func DecodeRequest(frame []byte) (*Request, []byte, error) {
	head, payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, nil, err
	}
	var req Request
	if err := json.Unmarshal(head, &req); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshal request")
	}
	return &req, payload, nil
}

// DecodeResponse parses a response frame.
func DecodeResponse(frame []byte) (*Response, []byte, error) {
	head, payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, nil, err
	}
	var resp Response
	if err := json.Unmarshal(head, &resp); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshal response")
	}
	return &resp, payload, nil
}
