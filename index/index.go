// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index stores code entities as searchable documents and answers
// lexical relevance queries over them.
//
// The Store interface abstracts the backing store; WeaviateStore is the
// production implementation. SemanticIndex sits above a Store and owns
// document composition and live-source snippet reads.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/codeintel/ast"
)

// Record is one searchable document derived from a code entity.
type Record struct {
	// ID is the stable record identity, "filePath:name:ordinal".
	ID string `json:"id"`

	// Text is the searchable document body.
	Text string `json:"text"`

	// Metadata carries the structured fields stored alongside the text.
	Metadata RecordMetadata `json:"metadata"`
}

// RecordMetadata is the structured payload stored with each record.
// Deliberately small: code text is re-read from disk at query time rather
// than stored, so results never show stale snippets.
type RecordMetadata struct {
	Name      string         `json:"name"`
	Kind      ast.EntityKind `json:"kind"`
	FilePath  string         `json:"file_path"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
}

// Hit is one query result.
type Hit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata RecordMetadata `json:"metadata"`

	// CodeText is the entity's current source, read from disk at query
	// time. Empty if the file could not be read.
	CodeText string `json:"code_text,omitempty"`
}

// Store is the persistence interface for entity records.
type Store interface {
	// Insert writes records, overwriting any record with the same ID.
	// Returns the count actually stored.
	Insert(ctx context.Context, records []Record) (int, error)

	// Query returns up to limit records ranked by lexical relevance to
	// the query text, best first.
	Query(ctx context.Context, query string, limit int) ([]Hit, error)
}

// SemanticIndex composes entity documents and resolves query hits back to
// live source code.
//
// Thread Safety:
//
//	Safe for concurrent use when the underlying Store is.
type SemanticIndex struct {
	store  Store
	logger *slog.Logger
}

// NewSemanticIndex creates a SemanticIndex over the given store.
func NewSemanticIndex(store Store, logger *slog.Logger) *SemanticIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticIndex{store: store, logger: logger}
}

// IndexEntities converts entities to records and inserts them.
//
// Outputs:
//
//	int - Count of records actually stored.
//	error - Non-nil if the store could not take the records at all,
//	  wrapped in ErrInsertFailed (ctx cancellation passes through).
func (s *SemanticIndex) IndexEntities(ctx context.Context, entities []*ast.Entity) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	records := make([]Record, len(entities))
	for i, e := range entities {
		records[i] = RecordFromEntity(e)
	}

	stored, err := s.store.Insert(ctx, records)
	if err != nil && ctx.Err() == nil {
		return stored, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return stored, err
}

// Search runs a relevance query and hydrates each hit with the entity's
// current source text.
//
// Description:
//
//	Hits reference files by path and line range; the source is read from
//	disk at query time so results reflect current file contents. A hit
//	whose file is unreadable or whose line range no longer fits keeps an
//	empty CodeText and a warning is logged.
func (s *SemanticIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	hits, err := s.store.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	for i := range hits {
		code, err := readLineRange(hits[i].Metadata.FilePath, hits[i].Metadata.StartLine, hits[i].Metadata.EndLine)
		if err != nil {
			s.logger.Warn("could not read source for hit",
				slog.String("id", hits[i].ID),
				slog.String("error", err.Error()))
			continue
		}
		hits[i].CodeText = code
	}

	return hits, nil
}

// RecordFromEntity builds the searchable record for one entity. The
// document text layers the entity's name and kind, its summary, and its
// code so that name matches rank above body matches.
func RecordFromEntity(e *ast.Entity) Record {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" ")
	b.WriteString(e.Kind.String())
	b.WriteString("\n")
	if e.Summary != "" {
		b.WriteString(e.Summary)
		b.WriteString("\n")
	}
	b.WriteString(e.CodeText)
	text := b.String()

	return Record{
		ID:   e.ID(),
		Text: text,
		Metadata: RecordMetadata{
			Name:      e.Name,
			Kind:      e.Kind,
			FilePath:  e.FilePath,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
		},
	}
}

// readLineRange returns the inclusive 1-indexed line range of a file.
func readLineRange(path string, startLine, endLine int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return "", fmt.Errorf("line range [%d,%d] out of bounds for %s", startLine, endLine, path)
	}

	return strings.Join(lines[startLine-1:endLine], "\n"), nil
}
