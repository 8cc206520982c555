/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package remote

import (
	"net/url"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/containerd/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

type result struct {
	resp    *Response
	payload []byte
}

// Client is the tracer-side endpoint of the storage protocol. Responses
// are matched to callers by request id, so the client is a correlator
// rather than a callback chain: a reader goroutine hands each frame to
// the goroutine waiting on that id.
//
// The tracer issues one request at a time, but nothing here depends on
// it.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan result
	dead    error
}

// Dial connects to the storage service. The endpoint is the base URL
// (ws://host:port); the websocket route is implied. Connection attempts
// are retried briefly so the tracer can start alongside the daemon.
func Dial(endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parse storage url %s", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	var conn *websocket.Conn
	err = retry.Do(
		func() error {
			c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(5),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "dial storage service at %s", u.String())
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan result),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(errors.Wrap(errdefs.ErrConnectionLost, err.Error()))
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		resp, payload, err := DecodeResponse(frame)
		if err != nil {
			c.fail(errors.Wrap(errdefs.ErrConnectionLost, err.Error()))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			log.L.Warnf("dropping response with unknown id %s", resp.ID)
			continue
		}
		ch <- result{resp: resp, payload: payload}
	}
}

// fail marks the transport dead and releases every waiter.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead == nil {
		c.dead = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) Close() error {
	err := c.conn.Close()
	c.fail(errors.Wrap(errdefs.ErrConnectionLost, "client closed"))
	return err
}

func (c *Client) do(req *Request, payload []byte) (*Response, []byte, error) {
	req.ID = uuid.NewString()
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.dead != nil {
		c.mu.Unlock()
		return nil, nil, c.dead
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	frame, err := EncodeFrame(req, payload)
	if err != nil {
		return nil, nil, err
	}
	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.BinaryMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(errors.Wrap(errdefs.ErrConnectionLost, err.Error()))
		return nil, nil, c.dead
	}

	res, ok := <-ch
	if !ok {
		c.mu.Lock()
		err := c.dead
		c.mu.Unlock()
		return nil, nil, err
	}
	if !res.resp.Success {
		return nil, nil, errdefs.FromMessage(res.resp.Error)
	}
	return res.resp, res.payload, nil
}

// Read fetches up to size bytes at offset. The returned slice may be
// shorter than size when the file ends first; a read at or past
// end-of-file returns an empty slice.
func (c *Client) Read(path string, offset, size int64) ([]byte, error) {
	resp, payload, err := c.do(&Request{Operation: OpRead, Path: path, Offset: offset, Size: size}, nil)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) != resp.BytesRead {
		return nil, errors.Wrapf(errdefs.ErrConnectionLost,
			"read payload %d bytes, head says %d", len(payload), resp.BytesRead)
	}
	return payload, nil
}

// Write stores data at offset and reports the bytes accepted.
func (c *Client) Write(path string, offset int64, data []byte) (int64, error) {
	resp, _, err := c.do(&Request{Operation: OpWrite, Path: path, Offset: offset}, data)
	if err != nil {
		return 0, err
	}
	return resp.BytesWritten, nil
}

func (c *Client) Stat(path string) (*store.FileInfo, error) {
	resp, _, err := c.do(&Request{Operation: OpStat, Path: path}, nil)
	if err != nil {
		return nil, err
	}
	if resp.File == nil {
		return nil, errors.Wrap(errdefs.ErrConnectionLost, "stat response without file")
	}
	return resp.File, nil
}

func (c *Client) Truncate(path string, size int64) error {
	_, _, err := c.do(&Request{Operation: OpTruncate, Path: path, Size: size}, nil)
	return err
}

func (c *Client) Rename(path, newPath string) error {
	_, _, err := c.do(&Request{Operation: OpRename, Path: path, NewPath: newPath}, nil)
	return err
}

func (c *Client) Unlink(path string) error {
	_, _, err := c.do(&Request{Operation: OpUnlink, Path: path}, nil)
	return err
}
