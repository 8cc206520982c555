/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/maxmcd/cfc-ptrace/internal/flags"
	"github.com/maxmcd/cfc-ptrace/internal/logging"
	"github.com/maxmcd/cfc-ptrace/pkg/remote"
	"github.com/maxmcd/cfc-ptrace/pkg/tracer"
	"github.com/maxmcd/cfc-ptrace/version"
)

func main() {
	f := flags.NewTracerFlags()
	app := &cli.App{
		Name:        "cfc-ptrace",
		Usage:       "run a program with its filesystem accesses redirected to a virtual store",
		ArgsUsage:   "<executable> [args...]",
		Version:     version.Version,
		HideVersion: true,
		Flags:       f.F,
		Action: func(c *cli.Context) error {
			if f.Args.PrintVersion {
				fmt.Println("Version:    ", version.Version)
				fmt.Println("Revision:   ", version.Revision)
				fmt.Println("Go version: ", version.GoVersion)
				fmt.Println("Build time: ", version.BuildTimestamp)
				return nil
			}
			if c.NArg() < 1 {
				return cli.Exit("usage: cfc-ptrace <executable> [args...]", 2)
			}
			if err := logging.SetUpStderr(f.Args.LogLevel); err != nil {
				return cli.Exit(err.Error(), 2)
			}

			root := f.Args.VirtualRoot
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return errors.Wrap(err, "determine working directory")
				}
				root = filepath.Join(cwd, "fs")
			}

			client, err := remote.Dial(f.Args.StorageURL)
			if err != nil {
				return errors.Wrap(err, "connect to storage service")
			}
			defer client.Close()

			t, err := tracer.New(client, root)
			if err != nil {
				return err
			}
			code, err := t.Run(c.Args().First(), c.Args().Tail(), os.Environ())
			if err != nil {
				return errors.Wrap(err, "trace failed")
			}
			if code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("cfc-ptrace exited")
	}
}
