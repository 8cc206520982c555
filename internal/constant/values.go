/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// constants of the cfc-ptrace CLI and storage daemon config

package constant

const (
	// DefaultChunkSize is the storage chunk size in bytes, fixed when the
	// store is constructed and immutable afterwards.
	DefaultChunkSize = 512 * 1024

	// DefaultStorageURL is where the tracer expects the storage service.
	DefaultStorageURL = "ws://127.0.0.1:8080"

	// DefaultListenAddr is the storage daemon's bind address.
	DefaultListenAddr = "127.0.0.1:8080"

	// DefaultDatabasePath is the SQLite database file. ":memory:" is
	// accepted for ephemeral stores.
	DefaultDatabasePath = "fs.db"

	// VirtualFdBase is the first synthetic descriptor number handed to a
	// traced process. Kept far above anything the kernel will allocate.
	VirtualFdBase = 1000

	DefaultLogLevel string = "info"

	// Log rotation
	DefaultRotateLogMaxSize    = 200 // 200 megabytes
	DefaultRotateLogMaxBackups = 5
	DefaultRotateLogMaxAge     = 0 // days
	DefaultRotateLogLocalTime  = true
	DefaultRotateLogCompress   = true
)
