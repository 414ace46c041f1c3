// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"math"
	"testing"
)

// analyzeFunc parses source, finds the first definition, and runs the
// performance analyzer on it.
func analyzeFunc(t *testing.T, source, selfName string) *PerformanceMetrics {
	t.Helper()

	root, content := parseSource(t, source)
	def := firstDefinition(t, root)
	return AnalyzePerformance(def, content, selfName, source)
}

func TestAnalyzePerformanceCleanFunction(t *testing.T) {
	m := analyzeFunc(t, "def add(a, b):\n    return a + b\n", "add")

	if m.TimeComplexity != "O(1)" {
		t.Errorf("TimeComplexity = %q, want O(1)", m.TimeComplexity)
	}
	if m.SpaceComplexity != "O(1)" {
		t.Errorf("SpaceComplexity = %q, want O(1)", m.SpaceComplexity)
	}
	if m.Score != PerformanceScoreMax {
		t.Errorf("Score = %v, want %v", m.Score, PerformanceScoreMax)
	}
	if len(m.Bottlenecks) != 0 {
		t.Errorf("Bottlenecks = %v, want none", m.Bottlenecks)
	}
}

func TestAnalyzePerformanceRecursion(t *testing.T) {
	source := "def count(n):\n    if n == 0:\n        return 0\n    return count(n - 1)\n"
	m := analyzeFunc(t, source, "count")

	if m.TimeComplexity != "O(2^n)" {
		t.Errorf("TimeComplexity = %q, want O(2^n)", m.TimeComplexity)
	}
	if m.SpaceComplexity != "O(n)" {
		t.Errorf("SpaceComplexity = %q, want O(n)", m.SpaceComplexity)
	}
	// 1.0 minus the averaged (0.8, 0.2) class penalties.
	if math.Abs(m.Score-0.5) > 1e-9 {
		t.Errorf("Score = %v, want 0.5", m.Score)
	}
}

func TestAnalyzePerformanceSelfNameMatters(t *testing.T) {
	source := "def outer(n):\n    return helper(n - 1)\n"
	m := analyzeFunc(t, source, "outer")

	if m.TimeComplexity != "O(1)" {
		t.Errorf("calling another function is not recursion: TimeComplexity = %q", m.TimeComplexity)
	}
}

func TestAnalyzePerformanceNestedLoops(t *testing.T) {
	source := "def pairs(xs):\n    for i in range(len(xs)):\n        for j in range(len(xs)):\n            compare(i, j)\n"
	m := analyzeFunc(t, source, "pairs")

	if m.TimeComplexity != "O(n^2)" {
		t.Errorf("TimeComplexity = %q, want O(n^2)", m.TimeComplexity)
	}

	// inefficient_list_operation and quadratic_operation both match, each
	// costing 0.1, plus the averaged (0.4, 0.0) class penalties.
	if math.Abs(m.Score-0.6) > 1e-9 {
		t.Errorf("Score = %v, want 0.6", m.Score)
	}

	if len(m.Bottlenecks) != 2 {
		t.Fatalf("Bottlenecks = %v, want 2 entries", m.Bottlenecks)
	}
	if m.Bottlenecks[0].Kind != "inefficient_list_operation" || m.Bottlenecks[0].Severity != "medium" {
		t.Errorf("first bottleneck = %+v", m.Bottlenecks[0])
	}
	if m.Bottlenecks[1].Kind != "quadratic_operation" || m.Bottlenecks[1].Severity != "high" {
		t.Errorf("second bottleneck = %+v", m.Bottlenecks[1])
	}
	if m.Bottlenecks[1].Suggestion != "Consider using more efficient data structure or algorithm" {
		t.Errorf("suggestion = %q", m.Bottlenecks[1].Suggestion)
	}
}

func TestAnalyzePerformanceScoreFloor(t *testing.T) {
	source := "def factorial(items):\n" +
		"    [items.append(i) for i in range(len(items))]\n" +
		"    for i in range(len(items)): items.sort()\n" +
		"    for u in urls:\n" +
		"        requests.get(u)\n" +
		"    return factorial(items)\n"
	m := analyzeFunc(t, source, "factorial")

	if m.Score != PerformanceScoreFloor {
		t.Errorf("Score = %v, want floor %v", m.Score, PerformanceScoreFloor)
	}
	if len(m.Bottlenecks) < 4 {
		t.Errorf("expected at least 4 bottlenecks, got %v", m.Bottlenecks)
	}
}

func TestAnalyzePerformanceAllocationSpace(t *testing.T) {
	source := "def build(xs):\n    out = []\n    for x in xs:\n        out = out + [x]\n    return out\n"
	m := analyzeFunc(t, source, "build")

	if m.SpaceComplexity != "O(n)" {
		t.Errorf("SpaceComplexity = %q, want O(n) for list literal", m.SpaceComplexity)
	}
	if m.TimeComplexity != "O(n)" {
		t.Errorf("TimeComplexity = %q, want O(n)", m.TimeComplexity)
	}
}
