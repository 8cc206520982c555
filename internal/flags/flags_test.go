/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package flags

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTracerFlags(t *testing.T) {
	set := flag.NewFlagSet("test", 0)
	flags := NewTracerFlags()
	for _, i := range flags.F {
		err := i.Apply(set)
		assert.Nil(t, err)
	}
	err := set.Parse([]string{"--virtual-root", "/srv/fs", "--storage-url", "ws://10.0.0.2:9000", "--log-level", "debug"})
	assert.Nil(t, err)
	assert.Equal(t, flags.Args.VirtualRoot, "/srv/fs")
	assert.Equal(t, flags.Args.StorageURL, "ws://10.0.0.2:9000")
	assert.Equal(t, flags.Args.LogLevel, "debug")
}

func TestNewStoragedFlags(t *testing.T) {
	set := flag.NewFlagSet("test", 0)
	flags := NewStoragedFlags()
	for _, i := range flags.F {
		err := i.Apply(set)
		assert.Nil(t, err)
	}
	err := set.Parse([]string{"--listen", "0.0.0.0:9000", "--db", ":memory:", "--chunk-size", "1024"})
	assert.Nil(t, err)
	assert.Equal(t, flags.Args.ListenAddr, "0.0.0.0:9000")
	assert.Equal(t, flags.Args.DatabasePath, ":memory:")
	assert.Equal(t, flags.Args.ChunkSize, 1024)
}
