// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package walker discovers Python source files under a root directory,
// pruning dependency and tooling directories.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultIgnoreDirs lists directory names pruned during discovery at any
// depth.
func DefaultIgnoreDirs() map[string]struct{} {
	return map[string]struct{}{
		"node_modules":  {},
		"venv":          {},
		"env":           {},
		"__pycache__":   {},
		".git":          {},
		".pytest_cache": {},
		"dist":          {},
		"build":         {},
		".vscode":       {},
		".idea":         {},
	}
}

// Walker finds Python source files under a root.
type Walker struct {
	ignoreDirs map[string]struct{}
}

// New creates a Walker. A nil ignoreDirs uses DefaultIgnoreDirs.
func New(ignoreDirs map[string]struct{}) *Walker {
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs()
	}
	return &Walker{ignoreDirs: ignoreDirs}
}

// Walk calls fn for every .py file under root, in lexical directory
// order. Ignored directories are pruned, not descended into.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked per directory entry.
//	root - Root directory of the source tree.
//	fn - Callback receiving each file's path. A non-nil error stops the
//	  walk and is returned.
//
// Outputs:
//
//	error - Non-nil if root is unreadable, fn failed, or ctx was
//	  canceled.
func (w *Walker) Walk(ctx context.Context, root string, fn func(path string) error) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root {
				if _, ignored := w.ignoreDirs[d.Name()]; ignored {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}

		return fn(path)
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}
