/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package errdefs

import (
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors shared by the store, the wire protocol and the tracer.
// The wire protocol transports them as the string forms below, so the
// messages are part of the protocol surface and must stay stable.
var (
	ErrNotFound        = errors.New("file not found")
	ErrAlreadyExists   = errors.New("destination file already exists")
	ErrChunkNotFound   = errors.New("chunk not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConnectionLost  = errors.New("storage connection lost")
)

// IsNotFound returns true if the error is due to a missing file
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if the error is due to a rename destination
// that already exists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsChunkNotFound returns true if the error is due to a read range with no
// stored chunks
func IsChunkNotFound(err error) bool {
	return errors.Is(err, ErrChunkNotFound)
}

// IsConnectionLost returns true if the error is due to a dead storage
// transport, which is fatal to the tracer
func IsConnectionLost(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}

// FromMessage maps an error string received over the wire back onto the
// sentinel it was produced from on the service side.
func FromMessage(msg string) error {
	switch {
	case strings.Contains(msg, ErrNotFound.Error()):
		return errors.Wrap(ErrNotFound, msg)
	case strings.Contains(msg, ErrAlreadyExists.Error()):
		return errors.Wrap(ErrAlreadyExists, msg)
	case strings.Contains(msg, ErrChunkNotFound.Error()):
		return errors.Wrap(ErrChunkNotFound, msg)
	default:
		return errors.New(msg)
	}
}
