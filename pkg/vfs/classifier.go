/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package vfs holds the tracer-side view of the virtual namespace: the
// classifier deciding which paths are redirected, and the table of
// synthetic descriptors handed to the traced process.
package vfs

import (
	"path/filepath"
	"strings"
)

// Classifier decides whether a path belongs to the virtual namespace.
// The decision is purely lexical; symlinks are not resolved because the
// traced process never reaches the real VFS for virtual paths.
type Classifier struct {
	root string
	cwd  string
}

// NewClassifier builds a classifier for the given virtual root. cwd is
// the traced process's working directory, used to resolve relative
// paths; it can be updated later when the child changes directory.
func NewClassifier(root, cwd string) *Classifier {
	return &Classifier{root: filepath.Clean(root), cwd: filepath.Clean(cwd)}
}

// Resolve turns a path as seen by the traced process into an absolute
// cleaned path.
func (c *Classifier) Resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.cwd, path)
	}
	return filepath.Clean(path)
}

// IsVirtual reports whether the (resolved) path lies under the virtual
// root.
func (c *Classifier) IsVirtual(path string) bool {
	path = c.Resolve(path)
	if path == c.root {
		return true
	}
	return strings.HasPrefix(path, c.root+string(filepath.Separator))
}

// SetCwd replaces the working-directory snapshot after the child
// successfully changes directory.
func (c *Classifier) SetCwd(cwd string) {
	c.cwd = filepath.Clean(cwd)
}

// Cwd returns the current working-directory snapshot.
func (c *Classifier) Cwd() string {
	return c.cwd
}
