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

	"github.com/maxmcd/cfc-ptrace/internal/constant"
	"github.com/maxmcd/cfc-ptrace/internal/flags"
	"github.com/maxmcd/cfc-ptrace/internal/logging"
	"github.com/maxmcd/cfc-ptrace/version"
)

func main() {
	f := flags.NewStoragedFlags()
	app := &cli.App{
		Name:        "cfc-storaged",
		Usage:       "chunked virtual-file storage service for cfc-ptrace",
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

			logDir := f.Args.LogDir
			if logDir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return errors.Wrap(err, "determine working directory")
				}
				logDir = filepath.Join(cwd, logging.DefaultLogDirName)
			}
			logRotateArgs := &logging.RotateLogArgs{
				RotateLogMaxSize:    constant.DefaultRotateLogMaxSize,
				RotateLogMaxBackups: constant.DefaultRotateLogMaxBackups,
				RotateLogMaxAge:     constant.DefaultRotateLogMaxAge,
				RotateLogLocalTime:  constant.DefaultRotateLogLocalTime,
				RotateLogCompress:   constant.DefaultRotateLogCompress,
			}
			if err := logging.SetUp(f.Args.LogLevel, f.Args.LogToStdout, logDir, logRotateArgs); err != nil {
				return errors.Wrap(err, "failed to set up logger")
			}

			log.L.Infof("Start cfc-storaged. PID %d Version %s", os.Getpid(), version.Version)
			return serve(f.Args)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("failed to start cfc-storaged")
	}
}
