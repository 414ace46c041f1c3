// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/codeintel/ast"
)

// CodeEntityClassName is the Weaviate class name for indexed entities.
const CodeEntityClassName = "CodeEntity"

// BatchSize is the number of records imported per batch.
const BatchSize = 100

// DefaultQueryLimit is used when a query limit is zero or negative.
const DefaultQueryLimit = 10

// recordIDNamespace seeds the deterministic object UUIDs. Re-indexing the
// same entity overwrites its object instead of duplicating it.
var recordIDNamespace = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

// WeaviateConfig holds the settings for a WeaviateStore.
type WeaviateConfig struct {
	// Host is the Weaviate host:port. Required.
	Host string

	// Scheme is "http" or "https". Defaults to "http".
	Scheme string
}

// Validate checks the configuration for correctness.
func (c *WeaviateConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Scheme != "" && c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", c.Scheme)
	}
	return nil
}

func (c *WeaviateConfig) applyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "http"
	}
}

// WeaviateStore is the Weaviate-backed Store implementation.
//
// Description:
//
//	Records are stored as CodeEntity objects with the document text in a
//	word-tokenized property so BM25 queries rank by lexical relevance.
//	No vectorizer is configured.
//
// Thread Safety:
//
//	Safe for concurrent use.
type WeaviateStore struct {
	client *weaviate.Client
	logger *slog.Logger

	// submit sends one batch of objects to the store. Overridable in
	// tests; defaults to the batch REST endpoint.
	submit func(ctx context.Context, objects []*models.Object) ([]models.ObjectsGetResponse, error)
}

// NewWeaviateStore connects to Weaviate and ensures the CodeEntity class
// exists.
//
// Outputs:
//
//	*WeaviateStore - Ready-to-use store.
//	error - Non-nil when the config is invalid or the schema could not
//	  be verified (wraps ErrSchemaSetup).
func NewWeaviateStore(ctx context.Context, cfg WeaviateConfig, logger *slog.Logger) (*WeaviateStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weaviate config: %w", err)
	}
	cfg.applyDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	s := &WeaviateStore{client: client, logger: logger}
	s.submit = s.batchImport
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *WeaviateStore) batchImport(ctx context.Context, objects []*models.Object) ([]models.ObjectsGetResponse, error) {
	return s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
}

// codeEntitySchema returns the Weaviate schema for the CodeEntity class.
func codeEntitySchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       CodeEntityClassName,
		Description: "Searchable code entity extracted from an indexed source tree",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "entityId",
				DataType:        []string{"text"},
				Description:     "Stable identity: filePath:name:ordinal",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "name",
				DataType:     []string{"text"},
				Description:  "Entity name",
				Tokenization: "word",
			},
			{
				Name:            "kind",
				DataType:        []string{"text"},
				Description:     "Entity kind: function or type",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "filePath",
				DataType:        []string{"text"},
				Description:     "Source file the entity was extracted from",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "startLine",
				DataType:    []string{"int"},
				Description: "First line of the entity, 1-indexed",
			},
			{
				Name:        "endLine",
				DataType:    []string{"int"},
				Description: "Last line of the entity, inclusive",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Searchable document: name, kind, summary, and code",
				Tokenization: "word",
			},
		},
	}
}

// ensureSchema creates the CodeEntity class if it doesn't exist. Idempotent.
func (s *WeaviateStore) ensureSchema(ctx context.Context) error {
	_, err := s.client.Schema().ClassGetter().WithClassName(CodeEntityClassName).Do(ctx)
	if err == nil {
		s.logger.Debug("CodeEntity schema already exists")
		return nil
	}

	s.logger.Info("creating CodeEntity schema")
	if err := s.client.Schema().ClassCreator().WithClass(codeEntitySchema()).Do(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaSetup, err)
	}

	return nil
}

// Insert writes records in batches of BatchSize.
//
// Description:
//
//	Object IDs are derived deterministically from record IDs, so
//	re-inserting a record overwrites the previous object. The import is
//	best-effort: when a whole batch call fails, or a batch reports
//	per-object failures, each affected object is retried once
//	individually, and objects that still fail are skipped and logged
//	rather than failing the whole import. Insert only errors when ctx
//	is canceled.
func (s *WeaviateStore) Insert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0

	for i := 0; i < len(records); i += BatchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		end := i + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		objects := make([]*models.Object, len(batch))
		for j, rec := range batch {
			objects[j] = objectFromRecord(rec)
		}

		result, err := s.submit(ctx, objects)
		if err != nil {
			if ctx.Err() != nil {
				return inserted, ctx.Err()
			}
			s.logger.Warn("batch insert failed, retrying records individually",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			for j, obj := range objects {
				if s.retryOne(ctx, obj) {
					inserted++
				} else {
					s.logger.Warn("skipping record after retry failed",
						slog.String("id", batch[j].ID))
				}
			}
			continue
		}

		for j, obj := range result {
			if obj.Result == nil || obj.Result.Errors == nil {
				inserted++
				continue
			}
			if s.retryOne(ctx, objects[j]) {
				inserted++
			} else {
				s.logger.Warn("skipping record after retry failed",
					slog.String("id", batch[j].ID))
			}
		}
	}

	return inserted, nil
}

// retryOne re-imports a single object that failed inside a batch.
func (s *WeaviateStore) retryOne(ctx context.Context, obj *models.Object) bool {
	result, err := s.submit(ctx, []*models.Object{obj})
	if err != nil {
		return false
	}
	for _, r := range result {
		if r.Result != nil && r.Result.Errors != nil {
			return false
		}
	}
	return true
}

func objectFromRecord(rec Record) *models.Object {
	objectID := uuid.NewSHA1(recordIDNamespace, []byte(rec.ID))

	return &models.Object{
		Class: CodeEntityClassName,
		ID:    strfmt.UUID(objectID.String()),
		Properties: map[string]interface{}{
			"entityId":  rec.ID,
			"name":      rec.Metadata.Name,
			"kind":      rec.Metadata.Kind.String(),
			"filePath":  rec.Metadata.FilePath,
			"startLine": rec.Metadata.StartLine,
			"endLine":   rec.Metadata.EndLine,
			"content":   rec.Text,
		},
	}
}

// Query runs a BM25 search over the content property.
func (s *WeaviateStore) Query(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	fields := []graphql.Field{
		{Name: "entityId"},
		{Name: "name"},
		{Name: "kind"},
		{Name: "filePath"},
		{Name: "startLine"},
		{Name: "endLine"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(CodeEntityClassName).
		WithFields(fields...).
		WithBM25(s.client.GraphQL().Bm25ArgBuilder().WithQuery(query).WithProperties("content")).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Hit{}, nil
	}
	objects, ok := data[CodeEntityClassName].([]interface{})
	if !ok {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		kind := ast.ParseEntityKind(getString(m, "kind"))

		hits = append(hits, Hit{
			ID:    getString(m, "entityId"),
			Score: getScore(m),
			Metadata: RecordMetadata{
				Name:      getString(m, "name"),
				Kind:      kind,
				FilePath:  getString(m, "filePath"),
				StartLine: getInt(m, "startLine"),
				EndLine:   getInt(m, "endLine"),
			},
		})
	}

	return hits, nil
}

// getString safely extracts a string from a map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getInt extracts an integer that GraphQL decoded as float64.
func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}

// getScore extracts the BM25 score, which Weaviate returns as a string
// inside _additional.
func getScore(m map[string]interface{}) float64 {
	additional, ok := m["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := additional["score"].(type) {
	case string:
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return score
	case float64:
		return v
	}
	return 0
}
