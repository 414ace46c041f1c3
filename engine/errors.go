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

import "fmt"

// ParseFailure records one file that could not be parsed during indexing.
// Parse failures skip the file; they never fail the run.
type ParseFailure struct {
	Path string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// AnalyzerFailure records an analyzer that could not run for one entity.
// The entity keeps its other results; the failed analyzer's contribution
// is omitted.
type AnalyzerFailure struct {
	EntityID string
	Analyzer string
	Err      error
}

func (e *AnalyzerFailure) Error() string {
	return fmt.Sprintf("analyzer %s on %s: %v", e.Analyzer, e.EntityID, e.Err)
}

func (e *AnalyzerFailure) Unwrap() error { return e.Err }

// IndexWriteFailure records a store write that was rejected outright.
type IndexWriteFailure struct {
	Err error
}

func (e *IndexWriteFailure) Error() string {
	return fmt.Sprintf("index write: %v", e.Err)
}

func (e *IndexWriteFailure) Unwrap() error { return e.Err }

// IndexQueryFailure records a store query that was rejected.
type IndexQueryFailure struct {
	Query string
	Err   error
}

func (e *IndexQueryFailure) Error() string {
	return fmt.Sprintf("index query %q: %v", e.Query, e.Err)
}

func (e *IndexQueryFailure) Unwrap() error { return e.Err }
