/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/maxmcd/cfc-ptrace/internal/flags"
	"github.com/maxmcd/cfc-ptrace/pkg/remote"
	"github.com/maxmcd/cfc-ptrace/pkg/signals"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
)

func serve(args *flags.StoragedArgs) error {
	st, err := store.New(args.DatabasePath, int64(args.ChunkSize))
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	srv := &http.Server{
		Addr:    args.ListenAddr,
		Handler: remote.NewServer(st).Router(),
	}

	stopSignal := signals.SetupSignalHandler()
	errCh := make(chan error, 1)
	go func() {
		log.L.Infof("serving on %s, database %s, chunk size %d",
			args.ListenAddr, args.DatabasePath, args.ChunkSize)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-stopSignal:
		log.L.Info("shutting down cfc-storaged")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	}
}
