// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts code entities from source files.
//
// An entity is one function-like or type-like declaration together with its
// source span, leading doc comment, coarse dependency set, and the analysis
// results computed at extraction time. Entities are the unit everything
// downstream operates on: graph nodes, index records, and modification
// candidates.
//
// Design principles:
//   - Line numbers are 1-indexed and inclusive, matching editors and LSP
//   - Dependency names are unresolved identifiers (coarse by design)
//   - No map[string]interface{} - concrete types only
package ast

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/codeintel/analysis"
)

// EntityKind is the tagged variant distinguishing function-like from
// type-like entities. Kind-specific behavior (complexity aggregation,
// parameter-count smells) switches on this value so handling stays
// exhaustive at compile time.
type EntityKind int

const (
	// EntityKindUnknown indicates an unrecognized declaration.
	EntityKindUnknown EntityKind = iota

	// EntityKindFunction represents a function or method declaration,
	// including functions nested inside types or other functions.
	EntityKindFunction

	// EntityKindType represents a type-like declaration (a Python class).
	EntityKindType
)

// entityKindNames maps EntityKind values to their string representations.
var entityKindNames = map[EntityKind]string{
	EntityKindUnknown:  "unknown",
	EntityKindFunction: "function",
	EntityKindType:     "type",
}

// String returns the string representation of the EntityKind.
//
// Returns "unknown" for unrecognized values.
func (k EntityKind) String() string {
	if name, ok := entityKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler for EntityKind.
//
// Serializes the kind as a JSON string (e.g., "function") rather than
// a number for better readability and forward compatibility.
func (k EntityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for EntityKind.
//
// Accepts both string values (e.g., "function") and numeric values
// for backward compatibility.
func (k *EntityKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseEntityKind(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("EntityKind must be string or int: %w", err)
	}
	*k = EntityKind(i)
	return nil
}

// ParseEntityKind converts a string to an EntityKind.
//
// Returns EntityKindUnknown if the string is not recognized.
func ParseEntityKind(s string) EntityKind {
	for kind, name := range entityKindNames {
		if name == s {
			return kind
		}
	}
	return EntityKindUnknown
}

// Entity represents one extracted function- or type-like declaration.
//
// Entities are identified by (FilePath, Name, Ordinal). Names are NOT
// globally unique: the same name may appear in many files, and a file may
// declare the same name more than once. Ordinal is the entity's position in
// that file's extraction order and disambiguates the latter case.
type Entity struct {
	// Name is the declared identifier as it appears in source code.
	Name string `json:"name"`

	// Kind indicates whether this is a function-like or type-like entity.
	Kind EntityKind `json:"kind"`

	// FilePath is the path to the containing file as given to the extractor.
	FilePath string `json:"file_path"`

	// StartLine is the 1-indexed line number where the declaration starts.
	StartLine int `json:"start_line"`

	// EndLine is the 1-indexed line number where the declaration ends
	// (inclusive).
	EndLine int `json:"end_line"`

	// Ordinal is the entity's position in the file's extraction order.
	// Part of the identity key; disambiguates same-named entities in one file.
	Ordinal int `json:"ordinal"`

	// Summary is the leading doc comment (docstring), empty if absent.
	Summary string `json:"summary,omitempty"`

	// Dependencies is the sorted set of referenced identifier names.
	//
	// Extraction is name-based only: every identifier in the entity's
	// subtree is collected, including local variables and builtins. This is
	// intentionally coarse; the over-count feeds the impact and risk scores
	// downstream and must not be "fixed" with scope resolution.
	Dependencies []string `json:"dependencies"`

	// CodeText is the verbatim source slice for [StartLine, EndLine].
	CodeText string `json:"code_text"`

	// ParamCount is the declared parameter count for function entities.
	// Zero for type entities.
	ParamCount int `json:"param_count,omitempty"`

	// Complexity is the cyclomatic complexity. For type entities it is the
	// arithmetic mean of the complexities of nested function entities
	// (0 if there are none), which is why it is fractional.
	Complexity float64 `json:"complexity"`

	// SecurityFindings lists matched security rule labels, at most one per
	// rule. Nil until computed.
	SecurityFindings []string `json:"security_findings,omitempty"`

	// Performance holds the performance heuristics. Nil until computed.
	Performance *analysis.PerformanceMetrics `json:"performance_metrics,omitempty"`
}

// ID returns the entity's identity key, "<file_path>:<name>:<ordinal>".
//
// This is also the record id used for semantic indexing, so re-indexing an
// unchanged file overwrites rather than duplicates.
func (e *Entity) ID() string {
	return EntityID(e.FilePath, e.Name, e.Ordinal)
}

// EntityID builds the identity key for an entity.
//
// Format: "<file_path>:<name>:<ordinal>"
func EntityID(filePath, name string, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d", filePath, name, ordinal)
}

// LineCount returns the number of source lines the entity spans.
func (e *Entity) LineCount() int {
	return e.EndLine - e.StartLine + 1
}

// SetDependencies stores the dependency set as a sorted slice.
func (e *Entity) SetDependencies(deps map[string]struct{}) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	e.Dependencies = names
}

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks if the Entity has valid field values.
//
// Returns nil if valid, or a ValidationError describing the first invalid
// field.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return ValidationError{Field: "Name", Message: "must not be empty"}
	}

	if e.Kind != EntityKindFunction && e.Kind != EntityKindType {
		return ValidationError{Field: "Kind", Message: "must be function or type"}
	}

	if e.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}

	if strings.Contains(e.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}

	if e.StartLine < 1 {
		return ValidationError{Field: "StartLine", Message: "must be >= 1 (1-indexed)"}
	}

	if e.EndLine < e.StartLine {
		return ValidationError{Field: "EndLine", Message: "must be >= StartLine"}
	}

	if e.Ordinal < 0 {
		return ValidationError{Field: "Ordinal", Message: "must be >= 0"}
	}

	if e.Complexity < 0 {
		return ValidationError{Field: "Complexity", Message: "must be non-negative"}
	}

	return nil
}

// FileEntities contains the output of extracting a single source file.
type FileEntities struct {
	// FilePath is the path to the extracted file as given to the extractor.
	FilePath string `json:"file_path"`

	// Entities contains all entities in file extraction order. An entity's
	// Ordinal equals its index in this slice.
	Entities []*Entity `json:"entities"`

	// Hash is the SHA256 hash of the file content at extraction time.
	Hash string `json:"hash"`

	// ParsedAtMilli is the Unix timestamp in milliseconds when extraction
	// completed.
	ParsedAtMilli int64 `json:"parsed_at_milli"`
}

// Validate checks if the FileEntities has valid field values.
func (f *FileEntities) Validate() error {
	if f.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}

	if strings.Contains(f.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}

	for i, e := range f.Entities {
		if err := e.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Entities[%d]", i),
				Message: err.Error(),
			}
		}
		if e.Ordinal != i {
			return ValidationError{
				Field:   fmt.Sprintf("Entities[%d].Ordinal", i),
				Message: fmt.Sprintf("must equal slice index %d", i),
			}
		}
	}

	return nil
}
