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
	"errors"
	"log/slog"
	"testing"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/codeintel/ast"
)

func TestWeaviateConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WeaviateConfig
		wantErr bool
	}{
		{name: "valid", cfg: WeaviateConfig{Host: "localhost:8080"}},
		{name: "valid https", cfg: WeaviateConfig{Host: "weaviate:443", Scheme: "https"}},
		{name: "missing host", cfg: WeaviateConfig{}, wantErr: true},
		{name: "bad scheme", cfg: WeaviateConfig{Host: "x", Scheme: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestObjectFromRecordDeterministicID(t *testing.T) {
	rec := Record{
		ID:   "a.py:f:0",
		Text: "f function\ndef f(): pass",
		Metadata: RecordMetadata{
			Name: "f", Kind: ast.EntityKindFunction, FilePath: "a.py", StartLine: 1, EndLine: 1,
		},
	}

	first := objectFromRecord(rec)
	second := objectFromRecord(rec)
	if first.ID != second.ID {
		t.Errorf("object IDs differ for same record: %s vs %s", first.ID, second.ID)
	}
	if first.ID == "" {
		t.Error("object ID must be set")
	}

	other := rec
	other.ID = "a.py:f:1"
	if objectFromRecord(other).ID == first.ID {
		t.Error("different record IDs must map to different object IDs")
	}

	if first.Class != CodeEntityClassName {
		t.Errorf("Class = %q", first.Class)
	}
	props, ok := first.Properties.(map[string]interface{})
	if !ok {
		t.Fatalf("Properties has unexpected type %T", first.Properties)
	}
	if props["entityId"] != "a.py:f:0" || props["kind"] != "function" {
		t.Errorf("properties = %v", props)
	}
}

func TestGetScore(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]interface{}
		want float64
	}{
		{
			name: "string score",
			m:    map[string]interface{}{"_additional": map[string]interface{}{"score": "2.5"}},
			want: 2.5,
		},
		{
			name: "numeric score",
			m:    map[string]interface{}{"_additional": map[string]interface{}{"score": 1.25}},
			want: 1.25,
		},
		{
			name: "missing additional",
			m:    map[string]interface{}{},
			want: 0,
		},
		{
			name: "unparseable score",
			m:    map[string]interface{}{"_additional": map[string]interface{}{"score": "NaN-ish"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getScore(tt.m); got != tt.want {
				t.Errorf("getScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeEntitySchema(t *testing.T) {
	schema := codeEntitySchema()

	if schema.Class != CodeEntityClassName {
		t.Errorf("Class = %q", schema.Class)
	}
	if schema.Vectorizer != "none" {
		t.Errorf("Vectorizer = %q, want none", schema.Vectorizer)
	}

	names := make(map[string]bool)
	for _, p := range schema.Properties {
		names[p.Name] = true
	}
	for _, want := range []string{"entityId", "name", "kind", "filePath", "startLine", "endLine", "content"} {
		if !names[want] {
			t.Errorf("schema missing property %q", want)
		}
	}
}

func erroredResponse(msg string) models.ObjectsGetResponse {
	return models.ObjectsGetResponse{
		Result: &models.ObjectsGetResponseAO2Result{
			Errors: &models.ErrorResponse{
				Error: []*models.ErrorResponseErrorItems0{{Message: msg}},
			},
		},
	}
}

func TestInsertRetriesRecordsWhenBatchCallFails(t *testing.T) {
	records := []Record{
		{ID: "a.py:f:0", Text: "f"},
		{ID: "a.py:g:0", Text: "g"},
		{ID: "a.py:h:0", Text: "h"},
	}
	badID := objectFromRecord(records[1]).ID

	calls := 0
	s := &WeaviateStore{logger: slog.Default()}
	s.submit = func(ctx context.Context, objects []*models.Object) ([]models.ObjectsGetResponse, error) {
		calls++
		if len(objects) > 1 {
			return nil, errors.New("batch endpoint unavailable")
		}
		if objects[0].ID == badID {
			return nil, errors.New("still unavailable")
		}
		return []models.ObjectsGetResponse{{}}, nil
	}

	inserted, err := s.Insert(context.Background(), records)
	if err != nil {
		t.Fatalf("Insert() error = %v, want best-effort nil", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2 of 3", inserted)
	}
	// One failed batch call plus one retry per record.
	if calls != 4 {
		t.Errorf("submit calls = %d, want 4", calls)
	}
}

func TestInsertRetriesObjectsReportedFailedInBatch(t *testing.T) {
	records := []Record{
		{ID: "a.py:f:0", Text: "f"},
		{ID: "a.py:g:0", Text: "g"},
	}

	retried := 0
	s := &WeaviateStore{logger: slog.Default()}
	s.submit = func(ctx context.Context, objects []*models.Object) ([]models.ObjectsGetResponse, error) {
		if len(objects) > 1 {
			return []models.ObjectsGetResponse{{}, erroredResponse("transient")}, nil
		}
		retried++
		return []models.ObjectsGetResponse{{}}, nil
	}

	inserted, err := s.Insert(context.Background(), records)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if retried != 1 {
		t.Errorf("retries = %d, want 1", retried)
	}
}

func TestInsertStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &WeaviateStore{logger: slog.Default()}
	s.submit = func(ctx context.Context, objects []*models.Object) ([]models.ObjectsGetResponse, error) {
		cancel()
		return nil, ctx.Err()
	}

	inserted, err := s.Insert(ctx, []Record{{ID: "a.py:f:0", Text: "f"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Insert() error = %v, want context.Canceled", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
}
