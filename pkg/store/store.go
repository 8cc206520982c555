/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package store implements the chunked file store: a persistent mapping
// from path to byte content, kept as fixed-size chunks keyed by
// (file_id, chunk_index) in a SQLite database. Files may be sparse;
// chunks that were never written have no row.
package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	file_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	filename    TEXT NOT NULL UNIQUE,
	file_size   INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS file_chunks (
	file_id     INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	chunk_data  BLOB NOT NULL,
	chunk_size  INTEGER NOT NULL,
	PRIMARY KEY (file_id, chunk_index)
);
`

// FileInfo mirrors a row of the files table.
type FileInfo struct {
	FileID     int64  `json:"file_id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

// Store is a chunked file store over a single SQLite database. All
// operations are synchronous; callers serialize access externally (the
// storage daemon services one request at a time per connection).
type Store struct {
	db        *sql.DB
	chunkSize int64
}

// New opens or creates the database at path and fixes the chunk size for
// the lifetime of the store. ":memory:" yields an ephemeral store.
func New(path string, chunkSize int64) (*Store, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "chunk size %d", chunkSize)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	// A second connection to a ":memory:" DSN would see a different,
	// empty database, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return &Store{db: db, chunkSize: chunkSize}, nil
}

// ChunkSize reports the configured chunk size in bytes.
func (s *Store) ChunkSize() int64 {
	return s.chunkSize
}

func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

type querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func lookupFile(q querier, path string) (*FileInfo, error) {
	var fi FileInfo
	err := q.QueryRow(
		`SELECT file_id, filename, file_size, created_at, modified_at FROM files WHERE filename = ?`,
		path).Scan(&fi.FileID, &fi.Filename, &fi.FileSize, &fi.CreatedAt, &fi.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errdefs.ErrNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "look up %s", path)
	}
	return &fi, nil
}

// Write stores data at the given byte offset, creating the file on first
// touch. Writes past the current end leave a hole; holes inside a
// materialized chunk read back as zeros, wholly untouched chunks have no
// row at all.
func (s *Store) Write(path string, offset int64, data []byte) error {
	if offset < 0 {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "negative offset %d", offset)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin write")
	}
	defer tx.Rollback()

	ts := now()
	fi, err := lookupFile(tx, path)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return err
		}
		res, err := tx.Exec(
			`INSERT INTO files (filename, file_size, created_at, modified_at) VALUES (?, 0, ?, ?)`,
			path, ts, ts)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "last insert id")
		}
		fi = &FileInfo{FileID: id, Filename: path}
	}

	for written := int64(0); written < int64(len(data)); {
		o := offset + written
		idx := o / s.chunkSize
		offInChunk := o % s.chunkSize
		n := s.chunkSize - offInChunk
		if remaining := int64(len(data)) - written; n > remaining {
			n = remaining
		}

		var existing []byte
		err := tx.QueryRow(
			`SELECT chunk_data FROM file_chunks WHERE file_id = ? AND chunk_index = ?`,
			fi.FileID, idx).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return errors.Wrapf(err, "fetch chunk %d of %s", idx, path)
		}

		// The new blob covers the old one and the incoming window; any
		// gap between them stays zero.
		blobLen := offInChunk + n
		if int64(len(existing)) > blobLen {
			blobLen = int64(len(existing))
		}
		blob := make([]byte, blobLen)
		copy(blob, existing)
		copy(blob[offInChunk:], data[written:written+n])

		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO file_chunks (file_id, chunk_index, chunk_data, chunk_size) VALUES (?, ?, ?, ?)`,
			fi.FileID, idx, blob, len(blob)); err != nil {
			return errors.Wrapf(err, "store chunk %d of %s", idx, path)
		}
		written += n
	}

	if _, err := tx.Exec(
		`UPDATE files SET file_size = MAX(file_size, ?), modified_at = ? WHERE file_id = ?`,
		offset+int64(len(data)), ts, fi.FileID); err != nil {
		return errors.Wrapf(err, "update size of %s", path)
	}
	return errors.Wrap(tx.Commit(), "commit write")
}

// Read returns exactly size bytes starting at offset. Byte ranges that
// fall into missing chunks, or past the end of a short chunk, come back
// zero-filled. The read fails only when the file is unknown, or when the
// requested range holds no stored chunk at all.
func (s *Store) Read(path string, offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "offset %d size %d", offset, size)
	}
	fi, err := lookupFile(s.db, path)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}

	first := offset / s.chunkSize
	last := (offset + size - 1) / s.chunkSize
	rows, err := s.db.Query(
		`SELECT chunk_index, chunk_data FROM file_chunks WHERE file_id = ? AND chunk_index BETWEEN ? AND ? ORDER BY chunk_index`,
		fi.FileID, first, last)
	if err != nil {
		return nil, errors.Wrapf(err, "scan chunks of %s", path)
	}
	defer rows.Close()

	buf := make([]byte, size)
	found := false
	for rows.Next() {
		var idx int64
		var blob []byte
		if err := rows.Scan(&idx, &blob); err != nil {
			return nil, errors.Wrapf(err, "scan chunk row of %s", path)
		}
		found = true

		// Clip the chunk's absolute byte range to the requested window.
		chunkStart := idx * s.chunkSize
		lo := offset
		if chunkStart > lo {
			lo = chunkStart
		}
		hi := offset + size
		if end := chunkStart + int64(len(blob)); end < hi {
			hi = end
		}
		if hi <= lo {
			continue
		}
		copy(buf[lo-offset:hi-offset], blob[lo-chunkStart:hi-chunkStart])
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan chunks of %s", path)
	}
	if !found {
		return nil, errors.Wrapf(errdefs.ErrChunkNotFound, "at index %d", first)
	}
	return buf, nil
}

// Stat returns the file row for path.
func (s *Store) Stat(path string) (*FileInfo, error) {
	return lookupFile(s.db, path)
}

// Truncate sets file_size to newSize. Chunk rows are left in place; bytes
// beyond the new size are masked because readers clip by file_size.
func (s *Store) Truncate(path string, newSize int64) error {
	if newSize < 0 {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "negative size %d", newSize)
	}
	res, err := s.db.Exec(
		`UPDATE files SET file_size = ?, modified_at = ? WHERE filename = ?`,
		newSize, now(), path)
	if err != nil {
		return errors.Wrapf(err, "truncate %s", path)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(errdefs.ErrNotFound, path)
	}
	return nil
}

// Rename moves path to newPath. The existence check and the update run in
// one transaction so the swap is atomic with respect to lookups.
func (s *Store) Rename(path, newPath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin rename")
	}
	defer tx.Rollback()

	if _, err := lookupFile(tx, newPath); err == nil {
		return errors.Wrap(errdefs.ErrAlreadyExists, newPath)
	} else if !errdefs.IsNotFound(err) {
		return err
	}

	res, err := tx.Exec(
		`UPDATE files SET filename = ?, modified_at = ? WHERE filename = ?`,
		newPath, now(), path)
	if err != nil {
		return errors.Wrapf(err, "rename %s to %s", path, newPath)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(errdefs.ErrNotFound, path)
	}
	return errors.Wrap(tx.Commit(), "commit rename")
}

// Unlink deletes the file row and every chunk belonging to it.
func (s *Store) Unlink(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin unlink")
	}
	defer tx.Rollback()

	fi, err := lookupFile(tx, path)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM file_chunks WHERE file_id = ?`, fi.FileID); err != nil {
		return errors.Wrapf(err, "delete chunks of %s", path)
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE file_id = ?`, fi.FileID); err != nil {
		return errors.Wrapf(err, "delete %s", path)
	}
	return errors.Wrap(tx.Commit(), "commit unlink")
}
