/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */
package remote

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

const testChunkSize = 1024

func newSession(t *testing.T) *Client {
	s, err := store.New(":memory:", testChunkSize)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(s).Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})

	client, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := newSession(t)

	n, err := c.Write("/fs/a.txt", 0, []byte("Hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := c.Read("/fs/a.txt", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), got)
}

func TestReadClipsAtEOF(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/short", 0, []byte("abc"))
	require.NoError(t, err)

	got, err := c.Read("/fs/short", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got, err = c.Read("/fs/short", 3, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Read("/fs/short", 50, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadHoleZeroFills(t *testing.T) {
	c := newSession(t)
	// Two chunks far apart; the hole between them is all zeros.
	_, err := c.Write("/fs/hole", 0, []byte{1})
	require.NoError(t, err)
	_, err = c.Write("/fs/hole", 5*testChunkSize, []byte{2})
	require.NoError(t, err)

	got, err := c.Read("/fs/hole", 2*testChunkSize, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), got)
}

func TestReadMissingFile(t *testing.T) {
	c := newSession(t)
	_, err := c.Read("/fs/nope", 0, 1)
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestStat(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/s", 100, []byte("xyz"))
	require.NoError(t, err)

	fi, err := c.Stat("/fs/s")
	require.NoError(t, err)
	assert.Equal(t, "/fs/s", fi.Filename)
	assert.Equal(t, int64(103), fi.FileSize)
	assert.NotEmpty(t, fi.CreatedAt)
	assert.NotEmpty(t, fi.ModifiedAt)
}

func TestTruncate(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/t", 0, make([]byte, 500))
	require.NoError(t, err)

	require.NoError(t, c.Truncate("/fs/t", 7))
	fi, err := c.Stat("/fs/t")
	require.NoError(t, err)
	assert.Equal(t, int64(7), fi.FileSize)

	// Reads clip at the new size.
	got, err := c.Read("/fs/t", 0, 500)
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestRenameCollision(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/src", 0, []byte("1"))
	require.NoError(t, err)
	_, err = c.Write("/fs/dst", 0, []byte("2"))
	require.NoError(t, err)

	err = c.Rename("/fs/src", "/fs/dst")
	require.Error(t, err)
	assert.True(t, errdefs.IsAlreadyExists(err))
}

func TestRenameAndUnlink(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/old", 0, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, c.Rename("/fs/old", "/fs/new"))
	_, err = c.Stat("/fs/old")
	assert.True(t, errdefs.IsNotFound(err))

	require.NoError(t, c.Unlink("/fs/new"))
	_, err = c.Stat("/fs/new")
	assert.True(t, errdefs.IsNotFound(err))

	err = c.Unlink("/fs/new")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestConcurrentRequestsCorrelate(t *testing.T) {
	c := newSession(t)
	_, err := c.Write("/fs/c", 0, []byte{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := int64(0); i < 8; i++ {
		wg.Add(1)
		go func(off int64) {
			defer wg.Done()
			got, err := c.Read("/fs/c", off, 1)
			assert.NoError(t, err)
			assert.Equal(t, []byte{byte(off)}, got)
		}(i)
	}
	wg.Wait()
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1") // nothing listens there
	require.Error(t, err)
}

func TestRequestAfterClose(t *testing.T) {
	c := newSession(t)
	require.NoError(t, c.Close())

	_, err := c.Read("/fs/x", 0, 1)
	require.Error(t, err)
	assert.True(t, errdefs.IsConnectionLost(err))
}
