/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package remote

import (
	"net/http"

	"github.com/containerd/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

// Server exposes a chunked file store over the framed protocol. Each
// connection is served by one goroutine, strictly one request at a time,
// so a single traced writer observes its operations in program order.
type Server struct {
	store    *store.Store
	upgrader websocket.Upgrader
}

func NewServer(s *store.Store) *Server {
	return &Server{
		store: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// Router builds the HTTP surface: the websocket endpoint and a health
// probe.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.L.Infof("session started from %s", conn.RemoteAddr())

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.L.WithError(err).Warn("session ended abnormally")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			log.L.Warnf("ignoring non-binary message of type %d", msgType)
			continue
		}

		resp, payload := s.handleFrame(frame)
		out, err := EncodeFrame(resp, payload)
		if err != nil {
			log.L.WithError(err).Error("encode response")
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			log.L.WithError(err).Warn("write response")
			return
		}
	}
}

func (s *Server) handleFrame(frame []byte) (*Response, []byte) {
	req, payload, err := DecodeRequest(frame)
	if err != nil {
		return &Response{Success: false, Error: err.Error()}, nil
	}
	resp, data := s.handleRequest(req, payload)
	resp.ID = req.ID
	return resp, data
}

func (s *Server) handleRequest(req *Request, payload []byte) (*Response, []byte) {
	log.L.Debugf("%s %s offset=%d size=%d payload=%d", req.Operation, req.Path, req.Offset, req.Size, len(payload))

	fail := func(err error) (*Response, []byte) {
		return &Response{Success: false, Error: err.Error()}, nil
	}

	switch req.Operation {
	case OpRead:
		return s.handleRead(req, fail)
	case OpWrite:
		if err := s.store.Write(req.Path, req.Offset, payload); err != nil {
			return fail(err)
		}
		return &Response{Success: true, BytesWritten: int64(len(payload))}, nil
	case OpStat:
		fi, err := s.store.Stat(req.Path)
		if err != nil {
			return fail(err)
		}
		return &Response{Success: true, File: fi}, nil
	case OpTruncate:
		if err := s.store.Truncate(req.Path, req.Size); err != nil {
			return fail(err)
		}
		return &Response{Success: true}, nil
	case OpRename:
		if err := s.store.Rename(req.Path, req.NewPath); err != nil {
			return fail(err)
		}
		return &Response{Success: true}, nil
	case OpUnlink:
		if err := s.store.Unlink(req.Path); err != nil {
			return fail(err)
		}
		return &Response{Success: true}, nil
	default:
		return fail(errdefs.ErrInvalidArgument)
	}
}

// handleRead clips the request against file_size so the tracer gets POSIX
// short-read and end-of-file semantics in a single round trip. A range
// that is all hole inside the file reads back as zeros; a range at or
// past end-of-file delivers zero bytes.
func (s *Server) handleRead(req *Request, fail func(error) (*Response, []byte)) (*Response, []byte) {
	fi, err := s.store.Stat(req.Path)
	if err != nil {
		return fail(err)
	}

	n := req.Size
	if end := req.Offset + req.Size; end > fi.FileSize {
		n = fi.FileSize - req.Offset
	}
	if n <= 0 {
		return &Response{Success: true, BytesRead: 0}, nil
	}

	data, err := s.store.Read(req.Path, req.Offset, n)
	if err != nil {
		if errdefs.IsChunkNotFound(err) {
			data = make([]byte, n)
		} else {
			return fail(err)
		}
	}
	return &Response{Success: true, BytesRead: n}, data
}
