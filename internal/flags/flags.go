/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package flags

import (
	"github.com/urfave/cli/v2"

	"github.com/maxmcd/cfc-ptrace/internal/constant"
)

// TracerArgs collects everything the tracer CLI accepts. The positional
// arguments (executable and its argv) are taken from the cli context, not
// bound here.
type TracerArgs struct {
	VirtualRoot  string
	StorageURL   string
	LogLevel     string
	PrintVersion bool
}

type TracerFlags struct {
	Args *TracerArgs
	F    []cli.Flag
}

func buildTracerFlags(args *TracerArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "virtual-root",
			Usage:       "path prefix under which file accesses are redirected to the store, defaults to <cwd>/fs",
			Destination: &args.VirtualRoot,
			EnvVars:     []string{"CFC_VIRTUAL_ROOT"},
		},
		&cli.StringFlag{
			Name:        "storage-url",
			Usage:       "websocket endpoint of the storage service",
			Destination: &args.StorageURL,
			Value:       constant.DefaultStorageURL,
			EnvVars:     []string{"CFC_STORAGE_URL"},
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level, possible values: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
			Destination: &args.LogLevel,
			Value:       constant.DefaultLogLevel,
		},
		&cli.BoolFlag{
			Name:        "version",
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
	}
}

func NewTracerFlags() *TracerFlags {
	var args TracerArgs
	return &TracerFlags{
		Args: &args,
		F:    buildTracerFlags(&args),
	}
}

// StoragedArgs collects the storage daemon flags.
type StoragedArgs struct {
	ListenAddr   string
	DatabasePath string
	ChunkSize    int
	LogLevel     string
	LogDir       string
	LogToStdout  bool
	PrintVersion bool
}

type StoragedFlags struct {
	Args *StoragedArgs
	F    []cli.Flag
}

func buildStoragedFlags(args *StoragedArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "listen",
			Usage:       "address to serve the websocket endpoint on",
			Destination: &args.ListenAddr,
			Value:       constant.DefaultListenAddr,
			EnvVars:     []string{"CFC_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "path to the SQLite database file, \":memory:\" for an ephemeral store",
			Destination: &args.DatabasePath,
			Value:       constant.DefaultDatabasePath,
			EnvVars:     []string{"CFC_DATABASE_PATH"},
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "storage chunk size in bytes, fixed for the lifetime of the database",
			Destination: &args.ChunkSize,
			Value:       constant.DefaultChunkSize,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level, possible values: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
			Destination: &args.LogLevel,
			Value:       constant.DefaultLogLevel,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Usage:       "directory to keep rotated log files in",
			Destination: &args.LogDir,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "print log messages to standard output",
			Destination: &args.LogToStdout,
		},
		&cli.BoolFlag{
			Name:        "version",
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
	}
}

func NewStoragedFlags() *StoragedFlags {
	var args StoragedArgs
	return &StoragedFlags{
		Args: &args,
		F:    buildStoragedFlags(&args),
	}
}
