// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine orchestrates codebase indexing and modification-point
// suggestion.
//
// An Engine walks a Python source tree, extracts code entities, builds
// the name-level dependency graph, and writes searchable records to the
// configured store. Once indexed, Suggest ranks entities relevant to a
// task description by modification confidence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codeintel/ast"
	"github.com/AleutianAI/codeintel/graph"
	"github.com/AleutianAI/codeintel/index"
	"github.com/AleutianAI/codeintel/walker"
)

// Option configures an Engine.
type Option func(*Engine)

// WithWorkerCount sets the number of concurrent extraction workers.
// Defaults to runtime.NumCPU().
func WithWorkerCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIgnoreDirs overrides the directory names pruned during discovery.
func WithIgnoreDirs(dirs map[string]struct{}) Option {
	return func(e *Engine) {
		if dirs != nil {
			e.walker = walker.New(dirs)
		}
	}
}

// WithExtractor replaces the default entity extractor.
func WithExtractor(x *ast.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// Engine is the code-understanding engine.
//
// Thread Safety:
//
//	Safe for concurrent use. Index replaces the dependency graph
//	atomically, so Suggest and the graph accessors always observe a
//	complete snapshot, never a partially built one.
type Engine struct {
	extractor *ast.Extractor
	idx       *index.SemanticIndex
	walker    *walker.Walker
	workers   int
	logger    *slog.Logger

	graph atomic.Pointer[graph.Graph]
}

// New creates an Engine over the given store.
//
// Example:
//
//	store, err := index.NewWeaviateStore(ctx, cfg, logger)
//	if err != nil { ... }
//	eng := engine.New(store, engine.WithWorkerCount(8))
//	report, err := eng.Index(ctx, "/path/to/repo")
func New(store index.Store, opts ...Option) *Engine {
	e := &Engine{
		extractor: ast.NewExtractor(),
		walker:    walker.New(nil),
		workers:   runtime.NumCPU(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.idx = index.NewSemanticIndex(store, e.logger)
	e.graph.Store(graph.New())

	return e
}

// Report summarizes one indexing run.
type Report struct {
	// FilesSeen is the count of Python files discovered.
	FilesSeen int

	// FilesIndexed is the count of files parsed successfully.
	FilesIndexed int

	// EntityCount is the total entities extracted.
	EntityCount int

	// RecordsStored is the count of records the store accepted.
	RecordsStored int

	// Failures holds the per-file and per-batch failures encountered.
	// Entries are *ParseFailure or *IndexWriteFailure.
	Failures []error

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Index walks root, extracts entities from every Python file, rebuilds
// the dependency graph, and writes searchable records to the store.
//
// Description:
//
//	Files are extracted concurrently by a bounded worker pool. A file
//	that cannot be read or parsed is skipped and recorded as a
//	ParseFailure in the report; it never aborts the run. Store writes
//	are best-effort too: a rejected write is recorded as an
//	IndexWriteFailure and the run still completes. The dependency
//	graph is built fresh from this run's entities and swapped in
//	atomically once complete, so concurrent readers never observe a
//	partial graph.
//
// Outputs:
//
//	*Report - Always non-nil, even on error, describing what happened.
//	error - Non-nil only when discovery fails or ctx is canceled.
func (e *Engine) Index(ctx context.Context, root string) (*Report, error) {
	ctx, span := startSpan(ctx, "Engine.Index", attribute.String("engine.root", root))
	defer span.End()
	start := time.Now()

	report := &Report{}
	defer func() {
		report.Duration = time.Since(start)
	}()

	var paths []string
	err := e.walker.Walk(ctx, root, func(path string) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		recordIndexMetrics(ctx, time.Since(start), 0, false)
		return report, fmt.Errorf("discovering files: %w", err)
	}
	report.FilesSeen = len(paths)

	e.logger.Info("indexing codebase",
		slog.String("root", root),
		slog.Int("files", len(paths)),
		slog.Int("workers", e.workers))

	files, failures, err := e.extractAll(ctx, paths)
	if err != nil {
		recordIndexMetrics(ctx, time.Since(start), report.FilesSeen, false)
		return report, err
	}
	report.Failures = failures
	report.FilesIndexed = len(files)

	var entities []*ast.Entity
	for _, f := range files {
		entities = append(entities, f.Entities...)
	}
	report.EntityCount = len(entities)

	g := buildGraph(entities)

	stored, storeErr := e.idx.IndexEntities(ctx, entities)
	report.RecordsStored = stored
	if storeErr != nil {
		failure := &IndexWriteFailure{Err: storeErr}
		report.Failures = append(report.Failures, failure)
		if ctx.Err() != nil {
			recordIndexMetrics(ctx, time.Since(start), report.FilesSeen, false)
			return report, failure
		}
		e.logger.Error("store writes failed, continuing with graph only",
			slog.Int("records_stored", stored),
			slog.String("error", storeErr.Error()))
	}

	e.graph.Store(g)

	span.SetAttributes(
		attribute.Int("engine.entities", report.EntityCount),
		attribute.Int("engine.files_indexed", report.FilesIndexed),
	)
	recordIndexMetrics(ctx, time.Since(start), report.FilesSeen, storeErr == nil)

	e.logger.Info("indexing complete",
		slog.Int("files_indexed", report.FilesIndexed),
		slog.Int("entities", report.EntityCount),
		slog.Int("records_stored", report.RecordsStored),
		slog.Int("failures", len(report.Failures)))

	return report, nil
}

// extractAll runs the extraction worker pool over the given paths.
// Results come back sorted by path so downstream ordering is stable.
func (e *Engine) extractAll(ctx context.Context, paths []string) ([]*ast.FileEntities, []error, error) {
	var (
		mu       sync.Mutex
		files    []*ast.FileEntities
		failures []error
	)

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.workers)

	for _, path := range paths {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				e.logger.Warn("skipping unreadable file",
					slog.String("file", path),
					slog.String("error", err.Error()))
				mu.Lock()
				failures = append(failures, &ParseFailure{Path: path, Err: err})
				mu.Unlock()
				return nil
			}

			result, err := e.extractor.Extract(ctx, content, path)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				e.logger.Warn("skipping unparseable file",
					slog.String("file", path),
					slog.String("error", err.Error()))
				mu.Lock()
				failures = append(failures, &ParseFailure{Path: path, Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			files = append(files, result)
			mu.Unlock()
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extraction canceled: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	return files, failures, nil
}

// buildGraph constructs the name-level dependency graph. Every entity
// becomes a node, and an edge is added for every dependency name,
// including names with no entity of their own (builtins, imports):
// those stay in the graph as dangling nodes and count toward fan-out.
// Self references become self loops.
func buildGraph(entities []*ast.Entity) *graph.Graph {
	g := graph.New()

	for _, e := range entities {
		g.AddNode(e.Name)
	}

	for _, e := range entities {
		for _, dep := range e.Dependencies {
			g.AddEdge(e.Name, dep)
		}
	}

	return g
}

// Graph returns the current dependency graph snapshot.
func (e *Engine) Graph() *graph.Graph {
	return e.graph.Load()
}

// Dependencies returns the direct dependency neighborhood of an entity
// name. Unknown names yield empty slices.
func (e *Engine) Dependencies(name string) (incoming, outgoing []string) {
	g := e.graph.Load()
	return g.Incoming(name), g.Outgoing(name)
}

// RiskFor returns the structural modification risk of an entity name.
func (e *Engine) RiskFor(name string) graph.Risk {
	g := e.graph.Load()
	return g.RiskFor(name, g.CyclicNodes())
}
