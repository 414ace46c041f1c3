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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for engine operations.
var (
	tracer = otel.Tracer("codeintel.engine")
	meter  = otel.Meter("codeintel.engine")
)

// Metrics for indexing and suggestion operations.
var (
	indexLatency   metric.Float64Histogram
	filesIndexed   metric.Int64Histogram
	suggestLatency metric.Float64Histogram
	suggestTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		indexLatency, err = meter.Float64Histogram(
			"codebase_index_duration_seconds",
			metric.WithDescription("Duration of full codebase indexing runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesIndexed, err = meter.Int64Histogram(
			"codebase_index_files",
			metric.WithDescription("Number of files processed per indexing run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		suggestLatency, err = meter.Float64Histogram(
			"suggest_duration_seconds",
			metric.WithDescription("Duration of modification-point suggestion queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		suggestTotal, err = meter.Int64Counter(
			"suggest_total",
			metric.WithDescription("Total number of suggestion queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordIndexMetrics records metrics for one indexing run.
func recordIndexMetrics(ctx context.Context, duration time.Duration, fileCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	indexLatency.Record(ctx, duration.Seconds(), attrs)
	filesIndexed.Record(ctx, int64(fileCount), attrs)
}

// recordSuggestMetrics records metrics for one suggestion query.
func recordSuggestMetrics(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	suggestLatency.Record(ctx, duration.Seconds(), attrs)
	suggestTotal.Add(ctx, 1, attrs)
}

// startSpan creates a span for an engine operation. The caller must call
// span.End().
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
