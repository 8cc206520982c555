/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package signals

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

var onlyOneSignalHandler = make(chan struct{})

// SetupSignalHandler returns a channel closed on the first SIGINT or
// SIGTERM. A second signal exits immediately.
func SetupSignalHandler() <-chan struct{} {
	close(onlyOneSignalHandler) // panics when called twice

	stop := make(chan struct{})
	c := make(chan os.Signal, 2)
	signal.Notify(c, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-c
		close(stop)
		<-c
		os.Exit(1)
	}()

	return stop
}
