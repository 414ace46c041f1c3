// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// writeTree creates the given files (with trivial content) under root.
func writeTree(t *testing.T, root string, paths []string) {
	t.Helper()

	for _, p := range paths {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("pass\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func collect(t *testing.T, w *Walker, root string) []string {
	t.Helper()

	var found []string
	err := w.Walk(context.Background(), root, func(path string) error {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		found = append(found, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	return found
}

func TestWalkFindsPythonFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"main.py",
		"pkg/util.py",
		"pkg/data.json",
		"README.md",
	})

	found := collect(t, New(nil), root)
	want := []string{"main.py", filepath.Join("pkg", "util.py")}
	if !slices.Equal(found, want) {
		t.Errorf("Walk() found %v, want %v", found, want)
	}
}

func TestWalkPrunesIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"app.py",
		"venv/lib/site.py",
		"node_modules/pkg/index.py",
		"__pycache__/app.cpython-311.py",
		"src/build/artifact.py",
		"src/ok.py",
	})

	found := collect(t, New(nil), root)
	want := []string{"app.py", filepath.Join("src", "ok.py")}
	if !slices.Equal(found, want) {
		t.Errorf("Walk() found %v, want %v", found, want)
	}
}

func TestWalkCustomIgnoreDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"keep.py",
		"generated/out.py",
		"venv/site.py",
	})

	w := New(map[string]struct{}{"generated": {}})
	found := collect(t, w, root)

	// A custom ignore set replaces the default one entirely.
	want := []string{"keep.py", filepath.Join("venv", "site.py")}
	if !slices.Equal(found, want) {
		t.Errorf("Walk() found %v, want %v", found, want)
	}
}

func TestWalkCallbackErrorStopsWalk(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{"a.py", "b.py"})

	sentinel := errors.New("stop")
	calls := 0
	err := New(nil).Walk(context.Background(), root, func(string) error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestWalkCanceledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{"a.py"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(nil).Walk(ctx, root, func(string) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	err := New(nil).Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), func(string) error {
		t.Fatal("callback must not run")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}
