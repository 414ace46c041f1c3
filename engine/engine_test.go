// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codeintel/index"
)

// memStore is an in-memory index.Store for engine tests.
type memStore struct {
	records   []index.Record
	insertErr error
	queryErr  error
}

func (m *memStore) Insert(_ context.Context, records []index.Record) (int, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.records = append(m.records, records...)
	return len(records), nil
}

func (m *memStore) Query(_ context.Context, _ string, limit int) ([]index.Hit, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	hits := make([]index.Hit, 0, limit)
	for i, rec := range m.records {
		if i >= limit {
			break
		}
		hits = append(hits, index.Hit{
			ID:       rec.ID,
			Score:    float64(len(m.records) - i),
			Metadata: rec.Metadata,
		})
	}
	return hits, nil
}

// writeFile writes one source file under dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexBuildsGraphAndStoresRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", `def helper(x):
    """Helps."""
    return x

def caller(a):
    return helper(a)
`)
	writeFile(t, dir, "rec.py", `def ping(n):
    return ping(n - 1)
`)

	store := &memStore{}
	eng := New(store, WithWorkerCount(2))

	report, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesSeen)
	assert.Equal(t, 2, report.FilesIndexed)
	assert.Equal(t, 3, report.EntityCount)
	assert.Equal(t, 3, report.RecordsStored)
	assert.Empty(t, report.Failures)
	assert.Len(t, store.records, 3)

	incoming, outgoing := eng.Dependencies("helper")
	assert.Equal(t, []string{"caller"}, incoming)
	assert.Equal(t, []string{"x"}, outgoing)

	// Self recursion shows up as a self loop, which is circular.
	risk := eng.RiskFor("ping")
	assert.True(t, risk.Circular)

	// Referenced names without an entity of their own stay in the graph
	// as dangling nodes.
	g := eng.Graph()
	assert.Contains(t, g.Nodes(), "x")
	assert.Contains(t, g.Nodes(), "n")
	assert.Empty(t, g.Outgoing("x"))
}

func TestIndexGraphKeepsDanglingDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", `def helper():
    print(len(x))
`)

	eng := New(&memStore{})
	_, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)

	// Builtins and undeclared names still count as dependencies and
	// feed fan-out, exactly as extracted.
	_, outgoing := eng.Dependencies("helper")
	assert.Equal(t, []string{"len", "print", "x"}, outgoing)

	g := eng.Graph()
	for _, name := range []string{"len", "print", "x"} {
		assert.Contains(t, g.Nodes(), name)
		assert.Empty(t, g.Outgoing(name))
		assert.Equal(t, []string{"helper"}, g.Incoming(name))
	}
}

func TestIndexSkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 9; i++ {
		writeFile(t, dir, fmt.Sprintf("ok%d.py", i), fmt.Sprintf("def fn%d():\n    return %d\n", i, i))
	}
	writeFile(t, dir, "broken.py", "def broken(:\n    pass\n")

	store := &memStore{}
	eng := New(store)

	report, err := eng.Index(context.Background(), dir)
	require.NoError(t, err, "one bad file must not fail the run")

	assert.Equal(t, 10, report.FilesSeen)
	assert.Equal(t, 9, report.FilesIndexed)
	assert.Equal(t, 9, report.EntityCount)

	require.Len(t, report.Failures, 1)
	var parseFailure *ParseFailure
	require.ErrorAs(t, report.Failures[0], &parseFailure)
	assert.Contains(t, parseFailure.Path, "broken.py")
}

func TestIndexIgnoresToolingDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def f():\n    pass\n")
	writeFile(t, dir, "venv/lib.py", "def hidden():\n    pass\n")
	writeFile(t, dir, "__pycache__/app.py", "def cached():\n    pass\n")

	eng := New(&memStore{})
	report, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesSeen)
	assert.Equal(t, 1, report.EntityCount)
}

func TestIndexStoreWriteFailureIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def f():\n    pass\n")

	store := &memStore{insertErr: errors.New("store down")}
	eng := New(store)

	// A failing store degrades the run, it does not abort it: the graph
	// still swaps in and the failure lands in the report.
	report, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesIndexed)
	assert.Zero(t, report.RecordsStored)
	require.Len(t, report.Failures, 1)
	var writeFailure *IndexWriteFailure
	require.ErrorAs(t, report.Failures[0], &writeFailure)

	assert.True(t, eng.Graph().Has("f"))
}

func TestIndexDiscoveryFailureKeepsPreviousGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def alpha():\n    pass\n")

	store := &memStore{}
	eng := New(store)
	_, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, eng.Graph().Has("alpha"))

	_, err = eng.Index(context.Background(), filepath.Join(dir, "nope"))
	require.Error(t, err)

	// The failed run must not have swapped in a new graph.
	assert.True(t, eng.Graph().Has("alpha"))
}

func TestIndexMissingRoot(t *testing.T) {
	eng := New(&memStore{})

	report, err := eng.Index(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Zero(t, report.FilesSeen)
}

func TestIndexCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def f():\n    pass\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&memStore{}).Index(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIndexReindexOverwritesByID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def f():\n    pass\n")

	store := &memStore{}
	eng := New(store)

	_, err := eng.Index(context.Background(), dir)
	require.NoError(t, err)
	_, err = eng.Index(context.Background(), dir)
	require.NoError(t, err)

	// Both runs produce the same record IDs; an ID-keyed store overwrites.
	require.Len(t, store.records, 2)
	assert.Equal(t, store.records[0].ID, store.records[1].ID)
}
